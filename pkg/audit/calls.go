package audit

import (
	"regexp"
	"strings"
)

// callPattern finds `name(` or `obj.method(` up to the first closing
// parenthesis. It does not balance parentheses: a nested call in the
// argument list cuts the outer capture short.
var callPattern = regexp.MustCompile(`([a-zA-Z_]\w*(?:\.[a-zA-Z_]\w*)?)\s*\(([^)]*)\)`)

// ExtractedCall is a call site recovered from sketch text.
type ExtractedCall struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// ExtractCalls scans raw sketch text for call sites in source order.
// Repeated calls are kept as separate entries.
func ExtractCalls(raw string) []ExtractedCall {
	matches := callPattern.FindAllStringSubmatch(raw, -1)
	calls := make([]ExtractedCall, 0, len(matches))
	for _, m := range matches {
		parts := splitArgs(m[2])
		args := make([]string, len(parts))
		for i, p := range parts {
			args[i] = Normalize(p)
		}
		calls = append(calls, ExtractedCall{
			Name: Normalize(m[1]),
			Args: args,
		})
	}
	return calls
}

// splitArgs splits an argument list on commas outside parentheses and
// drops blank segments.
func splitArgs(raw string) []string {
	var (
		args    []string
		current strings.Builder
		depth   int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			args = append(args, s)
		}
		current.Reset()
	}

	for _, r := range raw {
		switch {
		case r == ',' && depth == 0:
			flush()
			continue
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		}
		current.WriteRune(r)
	}
	flush()
	return args
}
