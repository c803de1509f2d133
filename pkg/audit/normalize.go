// Package audit decides whether a learner's sketch satisfies a mission's
// checkpoints. It works on text alone: the sketch is normalized, call
// sites are lifted out lexically, and each checkpoint's rules are
// evaluated against both. Nothing here touches clocks, randomness or I/O,
// so a result is a pure function of (mission, source).
package audit

import (
	"strings"
	"unicode"
)

// Normalize collapses every run of whitespace to a single space, trims the
// ends and lowercases the result. Every textual comparison in this package
// goes through it. A byte order mark counts as whitespace.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(text, isSpace), " "))
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}
