// Package strings provides string slice utilities used by the review and
// workflow services for evidence id sets and unmet indicator lists.
package strings

import "strings"

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved, so evidence ids keep
// their attachment order and gate errors list indicators catalog-first.
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

// ContainsFold reports whether values contains s under case-insensitive
// comparison. Used for indicator code lookups from user input.
func ContainsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
