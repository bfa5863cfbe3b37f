package receipt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

func TestParseScenarioMultiPriceAndTotal(t *testing.T) {
	lines := Parse("2 leche entera 1,25 2,50\nTOTAL 10,00")

	require.Len(t, lines, 1)
	assert.Equal(t, "leche entera", lines[0].Name)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("1.25")), "got %s", lines[0].Price)
	assert.Equal(t, StrategyMultiPrice, lines[0].Strategy)
}

func TestParseMultiPriceTakesUnitPrice(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"2 salmorejo fresco 1,25 2,50", "1.25"},
		{"3 yogur natural 0.45 1.35", "0.45"},
		{"10 agua mineral 0,20 2,00", "0.20"},
		{"2 leche entera\u00a01,25\u00a02,50", "1.25"},
		{"2\u00a0pan rustico 0,95 1,90", "0.95"},
	}
	for _, tc := range cases {
		parsed, ok := ParseLine(tc.line)
		require.True(t, ok, tc.line)
		assert.True(t, parsed.Price.Equal(decimal.RequireFromString(tc.want)), "%s: got %s", tc.line, parsed.Price)
		assert.Equal(t, StrategyMultiPrice, parsed.Strategy, tc.line)
	}

	parsed, ok := ParseLine("2 leche entera\u00a01,25\u00a02,50")
	require.True(t, ok)
	assert.Equal(t, "leche entera", parsed.Name)
}

func TestParseSinglePrice(t *testing.T) {
	parsed, ok := ParseLine("1 ls tortilla 1/2 p/ca 4,50")
	require.True(t, ok)
	assert.Equal(t, "ls tortilla 1/2 p/ca", parsed.Name)
	assert.True(t, parsed.Price.Equal(decimal.RequireFromString("4.50")))
	assert.Equal(t, StrategySinglePrice, parsed.Strategy)
}

func TestParseFallback(t *testing.T) {
	parsed, ok := ParseLine("PAN BARRA 0,65")
	require.True(t, ok)
	assert.Equal(t, "PAN BARRA", parsed.Name)
	assert.Equal(t, StrategyFallback, parsed.Strategy)

	parsed, ok = ParseLine("12x huevos camperos 2,35 ")
	require.True(t, ok)
	assert.Equal(t, "12x huevos camperos", parsed.Name)
}

func TestParseFallbackStripsStrayQuantity(t *testing.T) {
	// quantity followed by a name and price glued to another token: only the trailing
	// price token is recognised, so the single-price pattern does not apply.
	parsed, ok := ParseLine("4 platano canarias kg1,99")
	require.True(t, ok)
	assert.Equal(t, "platano canarias kg", parsed.Name)
	assert.True(t, parsed.Price.Equal(decimal.RequireFromString("1.99")))
	assert.Equal(t, StrategyFallback, parsed.Strategy)
}

func TestParseDiscardsNoise(t *testing.T) {
	for _, line := range []string{
		"TOTAL 10,00",
		"1 subtotal compra 3,00",
		"FACTURA SIMPLIFICADA 0001 1,00",
		"Descripción importe 2,00",
		"total (€) 25,10",
	} {
		_, ok := ParseLine(line)
		assert.False(t, ok, line)
	}
}

func TestParseRejectsShortNamesAndZeroPrices(t *testing.T) {
	for _, line := range []string{
		"1 ab 2,00",
		"IVA 0,00",
		"2 leche 0,00 0,00",
		"sin precio",
		"   ",
		"",
	} {
		_, ok := ParseLine(line)
		assert.False(t, ok, line)
	}
}

func TestParseKeepsOrderAndDuplicates(t *testing.T) {
	raw := "MERCADONA S.A.\n\n1 pan de molde 1,15\n2 leche entera 0,95 1,90\n1 pan de molde 1,15\nTOTAL 4,20\n"
	lines := Parse(raw)

	require.Len(t, lines, 3)
	assert.Equal(t, "pan de molde", lines[0].Name)
	assert.Equal(t, "leche entera", lines[1].Name)
	assert.Equal(t, "pan de molde", lines[2].Name)
}

func TestParsePriceNormalizesComma(t *testing.T) {
	price, err := ParsePrice("1,99")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.99")))

	_, err = ParsePrice("abc")
	require.Error(t, err)
}

func TestDetect(t *testing.T) {
	got, ok := Detect("... MERCADONA ...")
	require.True(t, ok)
	assert.Equal(t, enums.SupermarketMercadona, got)

	got, ok = Detect("Gracias por comprar en Lidl")
	require.True(t, ok)
	assert.Equal(t, enums.SupermarketLidl, got)

	got, ok = Detect("CONSUM S. COOP")
	require.True(t, ok)
	assert.Equal(t, enums.SupermarketConsum, got)

	_, ok = Detect("no vendor here")
	assert.False(t, ok)
}

func TestDetectPriorityOrder(t *testing.T) {
	got, ok := Detect("carrefour express junto a mercadona")
	require.True(t, ok)
	assert.Equal(t, enums.SupermarketMercadona, got)
}

func TestParseReceiptRequiresVendor(t *testing.T) {
	r := ParseReceipt("1 pan de molde 1,15")
	assert.False(t, r.Detected)
	assert.ErrorIs(t, r.Require(), ErrSupermarketNotDetected)
	assert.Len(t, r.Lines, 1)

	r = ParseReceipt("LIDL\n1 pan de molde 1,15")
	assert.NoError(t, r.Require())
	assert.Equal(t, enums.SupermarketLidl, r.Supermarket)
}
