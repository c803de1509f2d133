package audit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cgast/questcheck/pkg/mission"
)

// ErrInvalidRule marks a defect in authored rule content, as opposed to a
// sketch that simply fails a check.
var ErrInvalidRule = errors.New("invalid rule")

const defaultFailureReason = "Rule did not pass."

// evaluate resolves one rule against the normalized sketch and its calls.
// Learner text never produces an error; only malformed rules do.
func (e *Engine) evaluate(rule mission.Rule, canonical string, calls []ExtractedCall) (ruleOutcome, error) {
	switch r := rule.(type) {
	case mission.ContainsRule:
		if strings.Contains(canonical, Normalize(r.Text)) {
			return pass(fmt.Sprintf(`Contains "%s"`, r.Text)), nil
		}
		return fail(fmt.Sprintf(`Missing expected snippet "%s".`, r.Text)), nil

	case mission.PatternRule:
		re, err := e.compile(r)
		if err != nil {
			return ruleOutcome{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if re.MatchString(canonical) {
			return pass(fmt.Sprintf("Matches pattern /%s/%s", r.Pattern, r.Flags)), nil
		}
		return fail(fmt.Sprintf("Code does not match pattern /%s/%s.", r.Pattern, r.Flags)), nil

	case mission.CallRule:
		if m := r.EffectiveMatch(); m != mission.MatchExact && m != mission.MatchPrefix {
			return ruleOutcome{}, fmt.Errorf("%w: unknown match mode %q", ErrInvalidRule, m)
		}
		return evaluateCall(r, calls), nil

	case mission.NumericArgRangeRule:
		return evaluateRange(r, calls), nil

	case mission.AnyOfRule:
		var reasons []string
		for i, nested := range r.Rules {
			out, err := e.evaluate(nested, canonical, calls)
			if err != nil {
				return ruleOutcome{}, fmt.Errorf("anyOf[%d]: %w", i, err)
			}
			if out.passed {
				return out, nil
			}
			if out.failureReason != "" {
				reasons = append(reasons, out.failureReason)
			}
		}
		if len(reasons) == 0 {
			return fail(defaultFailureReason), nil
		}
		return fail(strings.Join(reasons, " OR ")), nil

	case nil:
		return ruleOutcome{}, fmt.Errorf("%w: nil rule", ErrInvalidRule)

	default:
		return ruleOutcome{}, fmt.Errorf("%w: unsupported rule %T", ErrInvalidRule, rule)
	}
}

func evaluateCall(r mission.CallRule, calls []ExtractedCall) ruleOutcome {
	target := Normalize(r.Function)
	minCount := r.EffectiveMinCount()
	mode := r.EffectiveMatch()

	if len(r.Args) == 0 {
		n := 0
		for _, c := range calls {
			if c.Name == target {
				n++
			}
		}
		if n >= minCount {
			return pass(fmt.Sprintf("Found %d call(s) to %s.", n, r.Function))
		}
		return fail(fmt.Sprintf("Expected at least %d call(s) to %s, found %d.", minCount, r.Function, n))
	}

	expected := normalizeAll(r.Args)
	n := 0
	for _, c := range calls {
		if c.Name == target && matchArgs(c.Args, expected, mode) {
			n++
		}
	}
	joined := strings.Join(r.Args, ", ")
	if n >= minCount {
		return pass(fmt.Sprintf("Found %d matching %s call(s) with args %s.", n, r.Function, joined))
	}
	return fail(fmt.Sprintf("Expected %s(%s) with mode %s; found %d match(es).", r.Function, joined, mode, n))
}

func evaluateRange(r mission.NumericArgRangeRule, calls []ExtractedCall) ruleOutcome {
	target := Normalize(r.Function)
	prefix := normalizeAll(r.ArgsPrefix)

	n := 0
	for _, c := range calls {
		if c.Name != target {
			continue
		}
		if len(prefix) > 0 && !matchArgs(c.Args, prefix, mission.MatchPrefix) {
			continue
		}
		if r.ArgIndex < 0 || r.ArgIndex >= len(c.Args) {
			continue
		}
		v, ok := parseNumber(c.Args[r.ArgIndex])
		if ok && v >= r.Min && v <= r.Max {
			n++
		}
	}

	bounds := formatNumber(r.Min) + "-" + formatNumber(r.Max)
	if n >= r.EffectiveMinCount() {
		return pass(fmt.Sprintf("Found %d %s call(s) with arg[%d] in range %s.", n, r.Function, r.ArgIndex, bounds))
	}
	return fail(fmt.Sprintf("Expected %s arg[%d] in range %s.", r.Function, r.ArgIndex, bounds))
}

// matchArgs compares a call's normalized arguments with normalized
// expected ones.
func matchArgs(actual, expected []string, mode mission.MatchMode) bool {
	if mode == mission.MatchPrefix {
		if len(actual) < len(expected) {
			return false
		}
		for i, want := range expected {
			if !strings.HasPrefix(actual[i], want) {
				return false
			}
		}
		return true
	}

	if len(actual) != len(expected) {
		return false
	}
	for i, want := range expected {
		if actual[i] != want {
			return false
		}
	}
	return true
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Normalize(s)
	}
	return out
}

// parseNumber reads a finite decimal or float literal. Integer literals
// with a 0x, 0o or 0b prefix are accepted too.
func parseNumber(s string) (float64, bool) {
	if s == "" || strings.ContainsRune(s, '_') {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' && strings.IndexByte("xob", s[1]) >= 0 {
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
