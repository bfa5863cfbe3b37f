package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

const (
	// CategoryAll is the filter value that disables category filtering.
	CategoryAll = "Todos"

	DefaultCategory  = "Otros"
	DefaultUnit      = "unidad"
	PlaceholderImage = "https://images.unsplash.com/photo-1542838132-92c53300491e?w=400"
)

// Product is a catalog entry with one price row per vocabulary supermarket.
type Product struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	Unit         string             `json:"unit"`
	Image        string             `json:"image"`
	Weight       *decimal.Decimal   `json:"weight,omitempty"`
	WeightUnit   *string            `json:"weightUnit,omitempty"`
	Pieces       *int               `json:"pieces,omitempty"`
	Nutrition    *Nutrition         `json:"nutrition,omitempty"`
	Prices       []SupermarketPrice `json:"prices"`
	PriceHistory []PricePoint       `json:"priceHistory"`
}

type SupermarketPrice struct {
	Supermarket enums.Supermarket `json:"supermarket"`
	Price       decimal.Decimal   `json:"price"`
	Available   bool              `json:"available"`
	Link        *string           `json:"link,omitempty"`
	Image       *string           `json:"image,omitempty"`
}

// PricePoint is one entry of the append-only price history.
type PricePoint struct {
	Supermarket enums.Supermarket `json:"supermarket"`
	Price       decimal.Decimal   `json:"price"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Nutrition holds per-100g facts. Every field is optional.
type Nutrition struct {
	Calories      *decimal.Decimal `json:"calories,omitempty"`
	Fat           *decimal.Decimal `json:"fat,omitempty"`
	SaturatedFat  *decimal.Decimal `json:"saturatedFat,omitempty"`
	Carbohydrates *decimal.Decimal `json:"carbohydrates,omitempty"`
	Sugars        *decimal.Decimal `json:"sugars,omitempty"`
	Proteins      *decimal.Decimal `json:"proteins,omitempty"`
	Salt          *decimal.Decimal `json:"salt,omitempty"`
	NutriScore    *string          `json:"nutriScore,omitempty"`
	NovaGroup     *int             `json:"novaGroup,omitempty"`
	Ingredients   *string          `json:"ingredients,omitempty"`
}

// Candidate is an unconfirmed product/price proposal held by a staging session.
// ExistingID is set iff IsNew is false.
type Candidate struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Supermarket enums.Supermarket `json:"supermarket"`
	Category    string            `json:"category"`
	Unit        string            `json:"unit"`
	Image       string            `json:"image"`
	IsNew       bool              `json:"isNew"`
	ExistingID  *string           `json:"existingId,omitempty"`
	OldPrice    *decimal.Decimal  `json:"oldPrice,omitempty"`
	Nutrition   *Nutrition        `json:"nutrition,omitempty"`
	Weight      *decimal.Decimal  `json:"weight,omitempty"`
	WeightUnit  *string           `json:"weightUnit,omitempty"`
	Pieces      *int              `json:"pieces,omitempty"`
}

// NewProduct is the input of AddProduct. Prices missing from the map are stored as unavailable.
type NewProduct struct {
	Name        string
	Description string
	Category    string
	Unit        string
	Image       string
	Weight      *decimal.Decimal
	WeightUnit  *string
	Pieces      *int
	Nutrition   *Nutrition
	Prices      map[enums.Supermarket]decimal.Decimal
}

// CommitResult reports what a Commit did. Updated and Added count candidates, not products:
// two candidates that land on the same product count as two updates, while
// UpdatedProductIDs lists each touched product once.
type CommitResult struct {
	Updated           int
	Added             int
	UpdatedProductIDs []string
	AddedProductIDs   []string
}

// PriceAt returns the price row for a supermarket.
func (p Product) PriceAt(supermarket enums.Supermarket) (SupermarketPrice, bool) {
	for _, entry := range p.Prices {
		if entry.Supermarket == supermarket {
			return entry, true
		}
	}
	return SupermarketPrice{}, false
}

// Clone returns a deep copy.
func (p Product) Clone() Product {
	out := p
	out.Weight = cloneDecimal(p.Weight)
	out.WeightUnit = cloneString(p.WeightUnit)
	out.Pieces = cloneInt(p.Pieces)
	out.Nutrition = p.Nutrition.Clone()
	if p.Prices != nil {
		out.Prices = make([]SupermarketPrice, len(p.Prices))
		for i, entry := range p.Prices {
			entry.Link = cloneString(entry.Link)
			entry.Image = cloneString(entry.Image)
			out.Prices[i] = entry
		}
	}
	if p.PriceHistory != nil {
		out.PriceHistory = make([]PricePoint, len(p.PriceHistory))
		copy(out.PriceHistory, p.PriceHistory)
	}
	return out
}

// Clone returns a deep copy; nil stays nil.
func (n *Nutrition) Clone() *Nutrition {
	if n == nil {
		return nil
	}
	return &Nutrition{
		Calories:      cloneDecimal(n.Calories),
		Fat:           cloneDecimal(n.Fat),
		SaturatedFat:  cloneDecimal(n.SaturatedFat),
		Carbohydrates: cloneDecimal(n.Carbohydrates),
		Sugars:        cloneDecimal(n.Sugars),
		Proteins:      cloneDecimal(n.Proteins),
		Salt:          cloneDecimal(n.Salt),
		NutriScore:    cloneString(n.NutriScore),
		NovaGroup:     cloneInt(n.NovaGroup),
		Ingredients:   cloneString(n.Ingredients),
	}
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	out := c
	out.ExistingID = cloneString(c.ExistingID)
	out.OldPrice = cloneDecimal(c.OldPrice)
	out.Nutrition = c.Nutrition.Clone()
	out.Weight = cloneDecimal(c.Weight)
	out.WeightUnit = cloneString(c.WeightUnit)
	out.Pieces = cloneInt(c.Pieces)
	return out
}

func cloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
