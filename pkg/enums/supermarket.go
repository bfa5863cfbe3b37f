package enums

import "strings"

// Supermarket names a chain in the closed supermarket vocabulary.
type Supermarket string

const (
	SupermarketMercadona Supermarket = "Mercadona"
	SupermarketLidl      Supermarket = "Lidl"
	SupermarketCarrefour Supermarket = "Carrefour"
	SupermarketConsum    Supermarket = "Consum"

	// SupermarketOther is the sentinel for text outside the vocabulary. It is never a price key.
	SupermarketOther Supermarket = "other"
)

// validSupermarkets is ordered by detection priority.
var validSupermarkets = []Supermarket{
	SupermarketMercadona,
	SupermarketLidl,
	SupermarketCarrefour,
	SupermarketConsum,
}

var supermarketLogos = map[Supermarket]string{
	SupermarketMercadona: "https://www.mercadona.es/favicon.ico",
	SupermarketLidl:      "https://www.lidl.es/favicon.ico",
	SupermarketCarrefour: "https://www.carrefour.es/favicon.ico",
	SupermarketConsum:    "https://www.consum.es/themes/custom/consum_es/assets/img/icon-responsive-consum.png",
}

// Supermarkets returns the vocabulary in priority order.
func Supermarkets() []Supermarket {
	out := make([]Supermarket, len(validSupermarkets))
	copy(out, validSupermarkets)
	return out
}

// String implements fmt.Stringer.
func (s Supermarket) String() string {
	return string(s)
}

// IsValid reports whether the value belongs to the vocabulary. The "other" sentinel is not valid.
func (s Supermarket) IsValid() bool {
	for _, candidate := range validSupermarkets {
		if candidate == s {
			return true
		}
	}
	return false
}

// Logo returns the chain favicon, empty for the sentinel.
func (s Supermarket) Logo() string {
	return supermarketLogos[s]
}

// ParseSupermarket normalizes free text into the vocabulary. Unknown names map to SupermarketOther.
func ParseSupermarket(value string) Supermarket {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validSupermarkets {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate
		}
	}
	return SupermarketOther
}
