package receipt

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	StrategyMultiPrice  = "multi_price"
	StrategySinglePrice = "single_price"
	StrategyFallback    = "fallback"

	minNameLength = 3
)

var (
	// OCR output often separates columns with non-breaking spaces.
	multiPriceExpr    = regexp.MustCompile(`^(\d+)[\s\x{00A0}]+(.+?)[\s\x{00A0}]+([0-9]+[.,][0-9]{2})[\s\x{00A0}]+([0-9]+[.,][0-9]{2})$`)
	singlePriceExpr   = regexp.MustCompile(`^(\d+)[\s\x{00A0}]+(.+?)[\s\x{00A0}]+([0-9]+[.,][0-9]{2})$`)
	trailingPriceExpr = regexp.MustCompile(`([0-9]+[.,][0-9]{2})[\s\x{00A0}]*$`)
	leadingQtyExpr    = regexp.MustCompile(`^[0-9]+[\s\x{00A0}]+`)

	// noiseTerms mark receipt header/footer lines rather than products.
	noiseTerms = []string{"total", "factura", "descripción"}
)

// ParsedLine is a product name and unit price extracted from one receipt line.
type ParsedLine struct {
	Name     string
	Price    decimal.Decimal
	Strategy string
}

// lineStrategy extracts a raw name and raw price token from a trimmed line.
type lineStrategy struct {
	name    string
	extract func(line string) (name, price string, ok bool)
}

// strategies are tried in order; the first one that matches wins.
var strategies = []lineStrategy{
	{
		name: StrategyMultiPrice,
		extract: func(line string) (string, string, bool) {
			m := multiPriceExpr.FindStringSubmatch(line)
			if m == nil {
				return "", "", false
			}
			// unit price, not the line total
			return m[2], m[3], true
		},
	},
	{
		name: StrategySinglePrice,
		extract: func(line string) (string, string, bool) {
			m := singlePriceExpr.FindStringSubmatch(line)
			if m == nil {
				return "", "", false
			}
			return m[2], m[3], true
		},
	},
	{
		name: StrategyFallback,
		extract: func(line string) (string, string, bool) {
			m := trailingPriceExpr.FindStringSubmatch(line)
			if m == nil {
				return "", "", false
			}
			name := strings.TrimSpace(trailingPriceExpr.ReplaceAllString(line, ""))
			name = leadingQtyExpr.ReplaceAllString(name, "")
			return name, m[1], true
		},
	},
}

// Parse turns raw OCR text into parsed lines in receipt order. Duplicates are kept.
func Parse(raw string) []ParsedLine {
	var lines []ParsedLine
	for _, line := range strings.Split(raw, "\n") {
		if parsed, ok := ParseLine(line); ok {
			lines = append(lines, parsed)
		}
	}
	return lines
}

// ParseLine applies the line strategies to a single receipt line.
func ParseLine(line string) (ParsedLine, bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return ParsedLine{}, false
	}

	for _, strategy := range strategies {
		rawName, rawPrice, ok := strategy.extract(text)
		if !ok {
			continue
		}

		price, err := ParsePrice(rawPrice)
		if err != nil || !price.IsPositive() {
			return ParsedLine{}, false
		}

		name := strings.TrimSpace(rawName)
		if utf8.RuneCountInString(name) < minNameLength || isNoise(name) {
			return ParsedLine{}, false
		}

		return ParsedLine{Name: name, Price: price, Strategy: strategy.name}, true
	}

	return ParsedLine{}, false
}

// ParsePrice converts a price token with a decimal comma or dot into a decimal.
func ParsePrice(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(raw), ",", ".", 1))
}

func isNoise(name string) bool {
	lower := strings.ToLower(name)
	for _, term := range noiseTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
