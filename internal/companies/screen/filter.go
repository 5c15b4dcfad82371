package screen

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/companyadmin/internal/companies"
)

// Filter returns the companies whose name contains search, ignoring case.
// Order is preserved and an empty search matches everything.
func Filter(items []companies.Company, search string) []companies.Company {
	out := make([]companies.Company, 0, len(items))
	if search == "" {
		return append(out, items...)
	}
	// Casers keep internal state and must not be shared across goroutines.
	lower := cases.Lower(language.Und)
	needle := lower.String(search)
	for _, c := range items {
		if strings.Contains(lower.String(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out
}
