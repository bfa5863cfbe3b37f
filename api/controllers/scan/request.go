package scan

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/internal/staging"
	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

type receiptTextRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

type barcodeRequest struct {
	Supermarket string           `json:"supermarket" validate:"required,supermarket"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
}

type manualEntryRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description,omitempty" validate:"max=500"`
	Price       decimal.Decimal  `json:"price"`
	Supermarket string           `json:"supermarket" validate:"required,supermarket"`
	Category    string           `json:"category,omitempty" validate:"max=60"`
	Unit        string           `json:"unit,omitempty" validate:"max=30"`
	Image       string           `json:"image,omitempty" validate:"omitempty,url"`
	Weight      *decimal.Decimal `json:"weight,omitempty"`
	WeightUnit  *string          `json:"weightUnit,omitempty"`
	Pieces      *int             `json:"pieces,omitempty" validate:"omitempty,min=1"`
}

// editCandidateRequest keeps price as raw text so "1,45" and 1.45 both reach the session.
type editCandidateRequest struct {
	Name  *string    `json:"name,omitempty"`
	Price *rawNumber `json:"price,omitempty"`
}

// rawNumber accepts a JSON string or number and keeps its text.
type rawNumber string

func (n *rawNumber) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = rawNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return err
	}
	*n = rawNumber(num.String())
	return nil
}

func (r manualEntryRequest) toEntry() staging.ManualEntry {
	return staging.ManualEntry{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Supermarket: enums.ParseSupermarket(r.Supermarket),
		Category:    strings.TrimSpace(r.Category),
		Unit:        strings.TrimSpace(r.Unit),
		Image:       strings.TrimSpace(r.Image),
		Weight:      r.Weight,
		WeightUnit:  r.WeightUnit,
		Pieces:      r.Pieces,
	}
}
