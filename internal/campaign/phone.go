// Package campaign holds the pure campaign logic: recipient parsing, rate
// limit projections, progress aggregation and A/B variant handling. Nothing
// here performs I/O.
package campaign

import "strings"

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

func digitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidPhoneNumber accepts numbers with 10 to 15 digits once every
// non-digit character is removed.
func IsValidPhoneNumber(phone string) bool {
	n := len(digitsOnly(phone))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// NormalizePhoneNumber returns the number as "+" followed by its digits.
// A leading "+" in the input is not preserved separately; it is always
// re-added, so "+90 555" and "90 555" normalize identically.
func NormalizePhoneNumber(phone string) string {
	return "+" + digitsOnly(phone)
}
