package mission

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleKind names one of the closed set of rule variants.
type RuleKind string

const (
	KindContains        RuleKind = "contains"
	KindPattern         RuleKind = "regex"
	KindCall            RuleKind = "call"
	KindNumericArgRange RuleKind = "numericArgRange"
	KindAnyOf           RuleKind = "anyOf"
)

// Rule is a single predicate over normalized sketch text and the calls
// extracted from it. The set of implementations is closed: only the types
// in this file satisfy it.
type Rule interface {
	Kind() RuleKind
	isRule()
}

// MatchMode selects how a CallRule compares expected arguments.
type MatchMode string

const (
	// MatchExact requires the same argument count and equal arguments.
	MatchExact MatchMode = "exact"
	// MatchPrefix requires at least as many arguments, each expected one
	// being a prefix of the actual one.
	MatchPrefix MatchMode = "prefix"
)

// ContainsRule passes when the normalized sketch contains Text.
type ContainsRule struct {
	Text string
}

// PatternRule passes when Pattern matches the normalized sketch. Authors
// write patterns against the lowercased, whitespace-collapsed form.
type PatternRule struct {
	Pattern string
	Flags   string
}

// CallRule passes when at least MinCount extracted calls named Function
// satisfy the argument policy. A zero MinCount means 1.
type CallRule struct {
	Function string
	Args     []string
	Match    MatchMode
	MinCount int
}

// NumericArgRangeRule passes when at least MinCount calls named Function,
// whose leading arguments start with ArgsPrefix, carry a finite number in
// [Min, Max] at ArgIndex.
type NumericArgRangeRule struct {
	Function   string
	ArgIndex   int
	Min        float64
	Max        float64
	ArgsPrefix []string
	MinCount   int
}

// AnyOfRule passes when any nested rule passes.
type AnyOfRule struct {
	Rules []Rule
}

func (ContainsRule) Kind() RuleKind        { return KindContains }
func (PatternRule) Kind() RuleKind         { return KindPattern }
func (CallRule) Kind() RuleKind            { return KindCall }
func (NumericArgRangeRule) Kind() RuleKind { return KindNumericArgRange }
func (AnyOfRule) Kind() RuleKind           { return KindAnyOf }

func (ContainsRule) isRule()        {}
func (PatternRule) isRule()         {}
func (CallRule) isRule()            {}
func (NumericArgRangeRule) isRule() {}
func (AnyOfRule) isRule()           {}

// EffectiveMinCount returns MinCount with the default applied.
func (r CallRule) EffectiveMinCount() int {
	return effectiveMinCount(r.MinCount)
}

// EffectiveMatch returns Match with the default and aliases applied. An
// unknown mode is returned unchanged.
func (r CallRule) EffectiveMatch() MatchMode {
	m, err := parseMatchMode(string(r.Match))
	if err != nil {
		return r.Match
	}
	return m
}

// EffectiveMinCount returns MinCount with the default applied.
func (r NumericArgRangeRule) EffectiveMinCount() int {
	return effectiveMinCount(r.MinCount)
}

func effectiveMinCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Compile builds the regular expression for the rule. Flag letters i, m
// and s map to RE2 inline flags; g, y, u and d are accepted and ignored
// since a single match test is unaffected by them.
func (r PatternRule) Compile() (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range r.Flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'g', 'y', 'u', 'd':
		default:
			return nil, fmt.Errorf("unsupported pattern flag %q", f)
		}
	}

	expr := r.Pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern /%s/%s: %w", r.Pattern, r.Flags, err)
	}
	return re, nil
}

// parseMatchMode accepts the canonical names plus the "startsWith" alias
// used by older content.
func parseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", string(MatchExact):
		return MatchExact, nil
	case string(MatchPrefix), "startsWith":
		return MatchPrefix, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}
