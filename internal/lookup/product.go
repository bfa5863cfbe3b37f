package lookup

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/catalog"
)

// Product is the mapped food database record. Every field is optional.
type Product struct {
	Code       string             `json:"code"`
	Name       *string            `json:"name,omitempty"`
	Brands     *string            `json:"brands,omitempty"`
	Category   *string            `json:"category,omitempty"`
	Quantity   *string            `json:"quantity,omitempty"`
	Image      *string            `json:"image,omitempty"`
	Weight     *decimal.Decimal   `json:"weight,omitempty"`
	WeightUnit *string            `json:"weightUnit,omitempty"`
	Pieces     *int               `json:"pieces,omitempty"`
	Nutrition  *catalog.Nutrition `json:"nutrition,omitempty"`
}

// offResponse mirrors GET /api/v2/product/{code}.json.
type offResponse struct {
	Code    string      `json:"code"`
	Status  *int        `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	ProductName       *string        `json:"product_name"`
	ProductNameES     *string        `json:"product_name_es"`
	ImageFrontURL     *string        `json:"image_front_url"`
	Categories        *string        `json:"categories"`
	Quantity          *string        `json:"quantity"`
	Brands            *string        `json:"brands"`
	Nutriments        *offNutriments `json:"nutriments"`
	IngredientsTextES *string        `json:"ingredients_text_es"`
	IngredientsText   *string        `json:"ingredients_text"`
	NutritionGrades   *string        `json:"nutrition_grades"`
	NovaGroup         *looseNumber   `json:"nova_group"`
}

type offNutriments struct {
	EnergyKcal100g    *looseNumber `json:"energy-kcal_100g"`
	Fat100g           *looseNumber `json:"fat_100g"`
	SaturatedFat100g  *looseNumber `json:"saturated-fat_100g"`
	Carbohydrates100g *looseNumber `json:"carbohydrates_100g"`
	Sugars100g        *looseNumber `json:"sugars_100g"`
	Proteins100g      *looseNumber `json:"proteins_100g"`
	Salt100g          *looseNumber `json:"salt_100g"`
}

// looseNumber accepts JSON numbers, numeric strings, blanks and nulls.
// The food database is inconsistent about which one it sends.
type looseNumber struct {
	value *decimal.Decimal
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		n.value = nil
		return nil
	}
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		n.value = nil
		return nil
	}
	n.value = &d
	return nil
}

func (n *looseNumber) dec() *decimal.Decimal {
	if n == nil || n.value == nil {
		return nil
	}
	v := *n.value
	return &v
}

func (r offResponse) found() bool {
	return r.Status != nil && *r.Status == 1 && r.Product != nil
}

func mapProduct(code string, p *offProduct) *Product {
	out := &Product{
		Code:     code,
		Name:     firstNonBlank(p.ProductNameES, p.ProductName),
		Brands:   nonBlank(p.Brands),
		Category: firstCategory(p.Categories),
		Quantity: nonBlank(p.Quantity),
		Image:    nonBlank(p.ImageFrontURL),
	}
	if out.Quantity != nil {
		if q, ok := ParseQuantity(*out.Quantity); ok {
			out.Weight = q.Amount
			out.WeightUnit = q.Unit
			out.Pieces = q.Pieces
		}
	}
	out.Nutrition = mapNutrition(p)
	return out
}

func mapNutrition(p *offProduct) *catalog.Nutrition {
	n := &catalog.Nutrition{
		NutriScore:  nonBlank(p.NutritionGrades),
		Ingredients: firstNonBlank(p.IngredientsTextES, p.IngredientsText),
	}
	if n.NutriScore != nil {
		grade := strings.ToLower(*n.NutriScore)
		n.NutriScore = &grade
	}
	if group := p.NovaGroup.dec(); group != nil {
		v := int(group.IntPart())
		n.NovaGroup = &v
	}
	if m := p.Nutriments; m != nil {
		n.Calories = m.EnergyKcal100g.dec()
		n.Fat = m.Fat100g.dec()
		n.SaturatedFat = m.SaturatedFat100g.dec()
		n.Carbohydrates = m.Carbohydrates100g.dec()
		n.Sugars = m.Sugars100g.dec()
		n.Proteins = m.Proteins100g.dec()
		n.Salt = m.Salt100g.dec()
	}
	if *n == (catalog.Nutrition{}) {
		return nil
	}
	return n
}

func firstCategory(categories *string) *string {
	if categories == nil {
		return nil
	}
	for _, part := range strings.Split(*categories, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			return &trimmed
		}
	}
	return nil
}

func firstNonBlank(values ...*string) *string {
	for _, v := range values {
		if nb := nonBlank(v); nb != nil {
			return nb
		}
	}
	return nil
}

func nonBlank(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
