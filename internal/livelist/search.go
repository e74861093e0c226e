package livelist

import "strings"

// Search filters by case-insensitive substring of the title. The input is
// never modified; an empty query returns a copy of it.
func Search[T any](items []T, query string, title func(T) string) []T {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if query == "" || strings.Contains(strings.ToLower(title(item)), query) {
			out = append(out, item)
		}
	}
	return out
}
