// Package phone canonicalizes raw phone strings into comparison keys.
package phone

import "strings"

// Normalize strips all non-digit characters and coerces common RU
// national forms to a single canonical shape: an 11-digit number with a
// leading 8 gets the 8 replaced by 7, a bare 10-digit number gets a 7
// prefixed. Anything else passes through digits-only.
//
// The result is only meaningful for equality comparison against other
// normalized values; malformed input yields a normalized-but-meaningless
// string rather than an error.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 10:
		return "7" + digits
	default:
		return digits
	}
}
