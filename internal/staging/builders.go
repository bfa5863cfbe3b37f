package staging

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/internal/lookup"
	"github.com/angelmondragon/cestaprecios/internal/receipt"
	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

const receiptDescriptionTemplate = "Producto detectado automáticamente desde ticket de %s"

// ManualEntry is a single product typed in by the user.
type ManualEntry struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Supermarket enums.Supermarket
	Category    string
	Unit        string
	Image       string
	Weight      *decimal.Decimal
	WeightUnit  *string
	Pieces      *int
}

// FromReceipt turns parsed receipt lines into candidates linked against snapshot.
// Lines are kept in receipt order and duplicates are not merged.
func FromReceipt(lines []receipt.ParsedLine, supermarket enums.Supermarket, snapshot []catalog.Product) *Session {
	candidates := make([]catalog.Candidate, 0, len(lines))
	for _, line := range lines {
		if existing, ok := catalog.Match(line.Name, snapshot); ok {
			candidates = append(candidates, linkedCandidate(*existing, line.Price, supermarket))
			continue
		}
		candidates = append(candidates, catalog.Candidate{
			Name:        capitalize(line.Name),
			Description: fmt.Sprintf(receiptDescriptionTemplate, supermarket),
			Price:       line.Price,
			Supermarket: supermarket,
			Category:    catalog.DefaultCategory,
			Unit:        catalog.DefaultUnit,
			Image:       catalog.PlaceholderImage,
			IsNew:       true,
		})
	}
	return NewSession(SourceReceipt, supermarket, candidates)
}

func FromManual(entry ManualEntry) *Session {
	candidate := catalog.Candidate{
		Name:        strings.TrimSpace(entry.Name),
		Description: strings.TrimSpace(entry.Description),
		Price:       entry.Price,
		Supermarket: entry.Supermarket,
		Category:    orDefault(entry.Category, catalog.DefaultCategory),
		Unit:        orDefault(entry.Unit, catalog.DefaultUnit),
		Image:       orDefault(entry.Image, catalog.PlaceholderImage),
		IsNew:       true,
		Weight:      entry.Weight,
		WeightUnit:  entry.WeightUnit,
		Pieces:      entry.Pieces,
	}
	return NewSession(SourceManual, entry.Supermarket, []catalog.Candidate{candidate})
}

// FromBarcode maps a food database record into one candidate. When the record's
// name matches a catalog product the candidate links to it and blank fields fall
// back to that product. product may be nil.
func FromBarcode(code string, product *lookup.Product, supermarket enums.Supermarket, price decimal.Decimal, snapshot []catalog.Product) *Session {
	if product == nil {
		product = &lookup.Product{Code: code}
	}

	var existing *catalog.Product
	if product.Name != nil {
		existing, _ = catalog.Match(*product.Name, snapshot)
	}

	var candidate catalog.Candidate
	if existing != nil {
		candidate = linkedCandidate(*existing, price, supermarket)
	} else {
		candidate = catalog.Candidate{
			Name:        "Producto " + strings.TrimSpace(code),
			Price:       price,
			Supermarket: supermarket,
			Category:    catalog.DefaultCategory,
			Unit:        catalog.DefaultUnit,
			Image:       catalog.PlaceholderImage,
			IsNew:       true,
		}
		if product.Name != nil {
			candidate.Name = *product.Name
		}
	}

	if product.Brands != nil && candidate.Description == "" {
		candidate.Description = *product.Brands
	}
	if product.Category != nil && existing == nil {
		candidate.Category = *product.Category
	}
	if product.Image != nil {
		candidate.Image = *product.Image
	}
	if product.Weight != nil {
		w := *product.Weight
		candidate.Weight = &w
	}
	if product.WeightUnit != nil {
		u := *product.WeightUnit
		candidate.WeightUnit = &u
	}
	if product.Pieces != nil {
		p := *product.Pieces
		candidate.Pieces = &p
	}
	if product.Nutrition != nil {
		candidate.Nutrition = product.Nutrition.Clone()
	}

	return NewSession(SourceBarcode, supermarket, []catalog.Candidate{candidate})
}

func linkedCandidate(existing catalog.Product, price decimal.Decimal, supermarket enums.Supermarket) catalog.Candidate {
	id := existing.ID
	c := catalog.Candidate{
		Name:        existing.Name,
		Description: existing.Description,
		Price:       price,
		Supermarket: supermarket,
		Category:    existing.Category,
		Unit:        existing.Unit,
		Image:       existing.Image,
		IsNew:       false,
		ExistingID:  &id,
		Nutrition:   existing.Nutrition.Clone(),
		Weight:      existing.Weight,
		WeightUnit:  existing.WeightUnit,
		Pieces:      existing.Pieces,
	}
	if row, ok := existing.PriceAt(supermarket); ok && row.Price.IsPositive() {
		old := row.Price
		c.OldPrice = &old
	}
	return c
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(name string) string {
	trimmed := strings.TrimSpace(name)
	first, size := utf8.DecodeRuneInString(trimmed)
	if first == utf8.RuneError {
		return trimmed
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(trimmed[size:])
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
