package transforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		fn       string
		value    any
		expected any
	}{
		{"uppercase", "uppercase", "hi", "HI"},
		{"uppercase non-string", "uppercase", 42, "42"},
		{"lowercase", "lowercase", "HeLLo", "hello"},
		{"trim", "trim", "  spaced  ", "spaced"},
		{"capitalize", "capitalize", "ada lovelace", "Ada lovelace"},
		{"capitalize empty", "capitalize", "", ""},
		{"format_currency", "format_currency", 1234.5, "$1,234.50"},
		{"format_currency string", "format_currency", "99", "$99.00"},
		{"format_number", "format_number", 1234567.0, "1,234,567"},
		{"format_date iso", "format_date", "2026-08-28", "Aug 28, 2026"},
		{"extract_domain email", "extract_domain", "ada@example.com", "example.com"},
		{"extract_domain url", "extract_domain", "https://docs.example.org/path", "docs.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.fn, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApply_UnknownFunction(t *testing.T) {
	_, err := Apply("reverse", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transform function")
}

func TestApply_BadInput(t *testing.T) {
	_, err := Apply("format_currency", "not a number")
	assert.Error(t, err)

	_, err = Apply("format_date", []any{})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "uppercase")
	assert.Contains(t, names, "format_currency")
	assert.Contains(t, names, "extract_domain")
}
