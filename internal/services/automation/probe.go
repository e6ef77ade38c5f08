package automation

import (
	"context"
	"strings"
)

// Find returns the first candidate name present in elements, comparing
// case-insensitively by substring. Candidates are tried in priority order.
func Find(elements []Element, names []string) (string, bool) {
	for _, name := range names {
		needle := strings.ToLower(name)
		for _, el := range elements {
			if strings.Contains(strings.ToLower(el.Name), needle) {
				return name, true
			}
		}
	}
	return "", false
}

// HasAll reports whether every name is present in elements.
func HasAll(elements []Element, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if _, ok := Find(elements, []string{name}); !ok {
			return false
		}
	}
	return true
}

// ClickFirst clicks the first candidate the driver reports as clicked. It
// returns the name clicked, or "" when every candidate was absent.
func ClickFirst(ctx context.Context, d Driver, names []string) (string, error) {
	for _, name := range names {
		result, err := d.Click(ctx, name)
		if err != nil {
			return "", err
		}
		if result == Clicked {
			return name, nil
		}
	}
	return "", nil
}
