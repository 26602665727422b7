// Package strings holds small string helpers shared by request handling.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence. The result is never nil, so it encodes as a JSON array.
//
//	DedupeAndTrim([]string{" manual.pdf", "manual.pdf ", "", "receipt.jpg"})
//	// []string{"manual.pdf", "receipt.jpg"}
func DedupeAndTrim(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
