package catalog

import "strings"

// Match returns the first product whose name contains the candidate name or is contained by it,
// ignoring case. It is deliberately loose so truncated or padded OCR names still link to the
// catalog; staging review catches false positives.
func Match(name string, snapshot []Product) (*Product, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}
	for i := range snapshot {
		existing := strings.ToLower(snapshot[i].Name)
		if existing == "" {
			continue
		}
		if strings.Contains(needle, existing) || strings.Contains(existing, needle) {
			p := snapshot[i].Clone()
			return &p, true
		}
	}
	return nil, false
}

// FindExact returns the first product whose trimmed name equals name, ignoring case.
func FindExact(name string, snapshot []Product) (*Product, bool) {
	idx := indexByName(snapshot, name)
	if idx < 0 {
		return nil, false
	}
	p := snapshot[idx].Clone()
	return &p, true
}

func indexByName(products []Product, name string) int {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return -1
	}
	for i := range products {
		if strings.EqualFold(strings.TrimSpace(products[i].Name), needle) {
			return i
		}
	}
	return -1
}

func indexByID(products []Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}
