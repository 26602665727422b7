package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil becomes empty",
			input:    nil,
			expected: []string{},
		},
		{
			name:     "trims file names",
			input:    []string{"  manual.pdf", "receipt.jpg  "},
			expected: []string{"manual.pdf", "receipt.jpg"},
		},
		{
			name:     "first occurrence wins",
			input:    []string{"b.pdf", "a.pdf", " b.pdf "},
			expected: []string{"b.pdf", "a.pdf"},
		},
		{
			name:     "blanks dropped",
			input:    []string{"", "   ", "a.pdf"},
			expected: []string{"a.pdf"},
		},
		{
			name:     "case is significant",
			input:    []string{"Manual.pdf", "manual.pdf"},
			expected: []string{"Manual.pdf", "manual.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
