package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPhoneNumber(t *testing.T) {
	cases := []struct {
		phone string
		want  bool
	}{
		{"+905551234567", true},
		{"(555) 123-4567", true},
		{"555 123 456", false},
		{"123456789", false},
		{"1234567890", true},
		{"123456789012345", true},
		{"1234567890123456", false},
		{"+1 (800) FLOWERS", false},
		{"", false},
	}

	for _, tc := range cases {
		t.Run(tc.phone, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidPhoneNumber(tc.phone))
		})
	}
}

func TestIsValidPhoneNumber_MatchesDigitCount(t *testing.T) {
	inputs := []string{"+90-555-123-45-67", "ab12cd34ef56gh78ij90", "  0 0 0 0 0 0 0 0 0 ", "+++", "12-34"}
	for _, in := range inputs {
		n := len(digitsOnly(in))
		assert.Equal(t, n >= 10 && n <= 15, IsValidPhoneNumber(in), in)
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	assert.Equal(t, "+905551234567", NormalizePhoneNumber("+90 555 123 45 67"))
	assert.Equal(t, "+905551234567", NormalizePhoneNumber("90 (555) 123-4567"))
	assert.Equal(t, "+15551234567", NormalizePhoneNumber("+1-555-123-4567"))
}
