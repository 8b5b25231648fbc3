package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StripsWhitespaceAndHyphens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain digits", "1234567", "1234567"},
		{"interior space", "1234 567", "1234567"},
		{"leading and trailing space", "  12345678  ", "12345678"},
		{"hyphens", "123-45-67", "1234567"},
		{"tabs and newlines", "123\t45\n67", "1234567"},
		{"mixed", " 12-34 567 ", "1234567"},
		{"empty", "", ""},
		{"letters preserved", "ABC-123", "ABC123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"1234567", "12 34-567", "  ", "ABC 123", "١٢٣٤٥٦٧"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"seven digits", "1234567", true},
		{"eight digits", "12345678", true},
		{"six digits", "123456", false},
		{"nine digits", "123456789", false},
		{"empty", "", false},
		{"letters", "12345ab", false},
		{"embedded space", "1234 567", false},
		{"unicode digits rejected", "١٢٣٤٥٦٧", false},
		{"leading zero ok", "0123456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateFormat(tt.input))
		})
	}
}

func TestValidate_NormalizesBeforeChecking(t *testing.T) {
	normalized, ok := Validate("1234 567")
	assert.True(t, ok)
	assert.Equal(t, "1234567", normalized)

	normalized, ok = Validate("12-34-56")
	assert.False(t, ok)
	assert.Equal(t, "123456", normalized)
}
