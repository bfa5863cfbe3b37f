package catalog

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

// SeedOptions controls the synthetic history generated on first load.
type SeedOptions struct {
	Samples  int
	Interval time.Duration
	// Variance is the relative spread around the seed price, 0.1 means ±10%.
	Variance float64
}

// DefaultSeedOptions yields five weekly samples within ±10%.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		Samples:  5,
		Interval: 7 * 24 * time.Hour,
		Variance: 0.1,
	}
}

func (o SeedOptions) withDefaults() SeedOptions {
	def := DefaultSeedOptions()
	if o.Samples <= 0 {
		o.Samples = def.Samples
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.Variance < 0 || o.Variance >= 1 {
		o.Variance = def.Variance
	}
	return o
}

type seedProduct struct {
	id          string
	name        string
	description string
	image       string
	category    string
	unit        string
	prices      map[enums.Supermarket]string
}

var defaultProducts = []seedProduct{
	{
		id:          "1",
		name:        "Leche Entera 1L",
		description: "Leche de vaca entera de alta calidad.",
		image:       "https://images.unsplash.com/photo-1563636619-e9108b9355ce?w=400",
		category:    "Lácteos",
		unit:        "litro",
		prices:      seedPrices("0.95", "0.92", "0.98"),
	},
	{
		id:          "2",
		name:        "Aceite de Oliva Virgen Extra 1L",
		description: "Aceite de oliva virgen extra obtenido directamente de aceitunas.",
		image:       "https://images.unsplash.com/photo-1474979266404-7eaacbcd87c5?w=400",
		category:    "Aceites",
		unit:        "litro",
		prices:      seedPrices("9.45", "9.25", "9.50"),
	},
	{
		id:          "3",
		name:        "Arroz Redondo 1kg",
		description: "Arroz blanco de grano redondo, ideal para paellas.",
		image:       "https://images.unsplash.com/photo-1586201375761-83865001e31c?w=400",
		category:    "Despensa",
		unit:        "kg",
		prices:      seedPrices("1.35", "1.30", "1.40"),
	},
	{
		id:          "4",
		name:        "Pechuga de Pollo 1kg",
		description: "Pechuga de pollo fresca, sin piel.",
		image:       "https://images.unsplash.com/photo-1604503468506-a8da13d82791?w=400",
		category:    "Carnicería",
		unit:        "kg",
		prices:      seedPrices("6.95", "6.75", "7.10"),
	},
	{
		id:          "5",
		name:        "Pan de Molde 450g",
		description: "Pan de molde blanco extra tierno.",
		image:       "https://images.unsplash.com/photo-1509440159596-0249088772ff?w=400",
		category:    "Despensa",
		unit:        "unidad",
		prices:      seedPrices("1.15", "1.10", "1.20"),
	},
	{
		id:          "6",
		name:        "Huevos L 12 uds",
		description: "Huevos frescos de gallinas criadas en suelo.",
		image:       "https://images.unsplash.com/photo-1506976785307-8732e854ad03?w=400",
		category:    "Despensa",
		unit:        "docena",
		prices:      seedPrices("2.35", "2.25", "2.45"),
	},
	{
		id:          "7",
		name:        "Detergente Líquido 3L",
		description: "Detergente para lavadora con fragancia floral.",
		image:       "https://images.unsplash.com/photo-1610557892470-55d9e80c0bce?w=400",
		category:    "Limpieza",
		unit:        "litro",
		prices:      seedPrices("5.45", "5.25", "5.60"),
	},
}

func seedPrices(mercadona, lidl, carrefour string) map[enums.Supermarket]string {
	return map[enums.Supermarket]string{
		enums.SupermarketMercadona: mercadona,
		enums.SupermarketLidl:      lidl,
		enums.SupermarketCarrefour: carrefour,
	}
}

// DefaultProducts returns the bundled starter catalog without any history.
func DefaultProducts() []Product {
	out := make([]Product, 0, len(defaultProducts))
	for _, seed := range defaultProducts {
		prices := make(map[enums.Supermarket]decimal.Decimal, len(seed.prices))
		for supermarket, raw := range seed.prices {
			prices[supermarket] = decimal.RequireFromString(raw)
		}
		out = append(out, Product{
			ID:           seed.id,
			Name:         seed.name,
			Description:  seed.description,
			Image:        seed.image,
			Category:     seed.category,
			Unit:         seed.unit,
			Prices:       priceTable(prices),
			PriceHistory: []PricePoint{},
		})
	}
	return out
}

// synthesizeHistory appends Samples entries per priced supermarket, oldest first, spaced by
// Interval and ending at now.
func synthesizeHistory(p *Product, now time.Time, opts SeedOptions, rng *rand.Rand) {
	for step := opts.Samples - 1; step >= 0; step-- {
		at := now.Add(-time.Duration(step) * opts.Interval)
		for _, entry := range p.Prices {
			if !entry.Price.IsPositive() {
				continue
			}
			factor := 1 - opts.Variance + rng.Float64()*2*opts.Variance
			p.PriceHistory = append(p.PriceHistory, PricePoint{
				Supermarket: entry.Supermarket,
				Price:       entry.Price.Mul(decimal.NewFromFloat(factor)).Round(2),
				Timestamp:   at,
			})
		}
	}
}

// priceTable builds a full vocabulary-ordered price table. Entries with a positive price are
// available; the rest are stored as price 0, unavailable.
func priceTable(prices map[enums.Supermarket]decimal.Decimal) []SupermarketPrice {
	supermarkets := enums.Supermarkets()
	table := make([]SupermarketPrice, 0, len(supermarkets))
	for _, supermarket := range supermarkets {
		price, ok := prices[supermarket]
		if !ok || !price.IsPositive() {
			table = append(table, SupermarketPrice{Supermarket: supermarket, Price: decimal.Zero})
			continue
		}
		table = append(table, SupermarketPrice{Supermarket: supermarket, Price: price, Available: true})
	}
	return table
}

// seedHistory records the initial price of every priced supermarket of a new product.
func seedHistory(p *Product, now time.Time) {
	for _, entry := range p.Prices {
		if entry.Price.IsPositive() {
			p.PriceHistory = append(p.PriceHistory, PricePoint{
				Supermarket: entry.Supermarket,
				Price:       entry.Price,
				Timestamp:   now,
			})
		}
	}
}

// normalizePrices rewrites a loaded price table to exactly one row per vocabulary supermarket.
// Rows outside the vocabulary are dropped; missing rows are added as unavailable.
func normalizePrices(p *Product) {
	byName := make(map[enums.Supermarket]SupermarketPrice, len(p.Prices))
	for _, entry := range p.Prices {
		supermarket := enums.ParseSupermarket(entry.Supermarket.String())
		if !supermarket.IsValid() {
			continue
		}
		if _, dup := byName[supermarket]; dup {
			continue
		}
		entry.Supermarket = supermarket
		byName[supermarket] = entry
	}
	supermarkets := enums.Supermarkets()
	table := make([]SupermarketPrice, 0, len(supermarkets))
	for _, supermarket := range supermarkets {
		if entry, ok := byName[supermarket]; ok {
			table = append(table, entry)
			continue
		}
		table = append(table, SupermarketPrice{Supermarket: supermarket, Price: decimal.Zero})
	}
	p.Prices = table
	if p.PriceHistory == nil {
		p.PriceHistory = []PricePoint{}
	}
}
