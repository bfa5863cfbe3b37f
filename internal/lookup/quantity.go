package lookup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a parsed package size such as "500 g" or "6 x 33 cl".
type Quantity struct {
	Amount *decimal.Decimal
	Unit   *string
	Pieces *int
}

var (
	multipackExpr = regexp.MustCompile(`^(\d+)\s*[x×]\s*([0-9]+(?:[.,][0-9]+)?)\s*([a-zA-Z]+)\b`)
	amountExpr    = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*([a-zA-Z]+)\b`)
	piecesExpr    = regexp.MustCompile(`^(\d+)\s*(?:uds?|unidades|u|piezas|pcs)\b`)
)

var knownUnits = map[string]string{
	"g":  "g",
	"gr": "g",
	"kg": "kg",
	"mg": "mg",
	"l":  "l",
	"lt": "l",
	"ml": "ml",
	"cl": "cl",
	"dl": "dl",
}

// ParseQuantity reads the food database quantity string. Unknown shapes return false.
func ParseQuantity(raw string) (Quantity, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return Quantity{}, false
	}

	if m := multipackExpr.FindStringSubmatch(text); m != nil {
		pieces, err := strconv.Atoi(m[1])
		if err != nil {
			return Quantity{}, false
		}
		q, ok := amountWithUnit(m[2], m[3])
		if !ok {
			return Quantity{}, false
		}
		q.Pieces = &pieces
		return q, true
	}

	if m := piecesExpr.FindStringSubmatch(text); m != nil {
		pieces, err := strconv.Atoi(m[1])
		if err != nil {
			return Quantity{}, false
		}
		return Quantity{Pieces: &pieces}, true
	}

	if m := amountExpr.FindStringSubmatch(text); m != nil {
		return amountWithUnit(m[1], m[2])
	}
	return Quantity{}, false
}

func amountWithUnit(rawAmount, rawUnit string) (Quantity, bool) {
	unit, ok := knownUnits[rawUnit]
	if !ok {
		return Quantity{}, false
	}
	amount, err := decimal.NewFromString(strings.Replace(rawAmount, ",", ".", 1))
	if err != nil || !amount.IsPositive() {
		return Quantity{}, false
	}
	return Quantity{Amount: &amount, Unit: &unit}, true
}
