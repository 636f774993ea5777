// Package fieldset holds order-preserving helpers for lists of field,
// model and purpose names.
package fieldset

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from values, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// Union returns the deduplicated concatenation of lists, first occurrence wins.
func Union(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return DedupeAndTrim(all)
}
