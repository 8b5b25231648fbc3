// Package license validates professional license numbers by format.
// Validation is purely syntactic; registry confirmation lives in the
// registry package.
package license

import "strings"

const (
	minDigits = 7
	maxDigits = 8
)

// Normalize strips all whitespace and hyphens from a raw license number.
// It is total and idempotent; it never fails.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateFormat reports whether a normalized license number consists of
// exactly 7 or 8 ASCII decimal digits. Unicode digits are rejected.
func ValidateFormat(s string) bool {
	if len(s) < minDigits || len(s) > maxDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Validate normalizes a raw license number and reports whether the result is
// well-formed.
func Validate(raw string) (string, bool) {
	normalized := Normalize(raw)
	return normalized, ValidateFormat(normalized)
}
