package audit

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// foldText normalizes to NFC and lowercases, so "Crème" matches "crème"
// regardless of how the input was composed.
func foldText(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// matchesSearch implements the free-text filter: case-insensitive
// substring match against description, order number, and performer
// name/id.
func matchesSearch(e Entry, query string) bool {
	q := foldText(query)
	for _, field := range []string{e.Description, e.OrderNumber, e.PerformedBy, e.PerformedByName} {
		if field != "" && strings.Contains(foldText(field), q) {
			return true
		}
	}
	return false
}
