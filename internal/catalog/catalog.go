package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
	"github.com/angelmondragon/cestaprecios/pkg/kvstore"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

// DefaultKey is the storage key of the product list blob.
const DefaultKey = "products"

var (
	ErrNotLoaded          = errors.New("catalog not loaded")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidSupermarket = errors.New("supermarket outside vocabulary")
	ErrInvalidProduct     = errors.New("invalid product")
)

// Options wires a Catalog. Store is required; everything else has a default.
type Options struct {
	Store    kvstore.Store
	Key      string
	Logger   *logger.Logger
	Clock    func() time.Time
	NewID    func() string
	Seed     SeedOptions
	Rand     *rand.Rand
	Defaults func() []Product
}

// Catalog owns the product list and persists it after every mutation.
type Catalog struct {
	mu       sync.RWMutex
	store    kvstore.Store
	key      string
	logg     *logger.Logger
	now      func() time.Time
	newID    func() string
	seed     SeedOptions
	rng      *rand.Rand
	defaults func() []Product
	products []Product
	loaded   bool

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSub     int
}

// New builds an unloaded catalog. Call Load before reading or mutating.
func New(opts Options) (*Catalog, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x63657374))
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = DefaultProducts
	}
	return &Catalog{
		store:       opts.Store,
		key:         key,
		logg:        opts.Logger,
		now:         clock,
		newID:       newID,
		seed:        opts.Seed.withDefaults(),
		rng:         rng,
		defaults:    defaults,
		subscribers: map[int]func(Event){},
	}, nil
}

// Load reads the persisted list. When the key was never written the bundled defaults are
// seeded with synthetic history and saved before returning.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found, err := c.store.Load(ctx, c.key)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	if !found {
		products := c.defaults()
		now := c.now()
		for i := range products {
			normalizePrices(&products[i])
			synthesizeHistory(&products[i], now, c.seed, c.rng)
		}
		if err := c.persist(ctx, products); err != nil {
			return err
		}
		c.products = products
		c.loaded = true
		c.logg.Info(c.logg.WithField(ctx, "products", len(products)), "catalog.seeded")
		return nil
	}

	products, err := decodeProducts(raw)
	if err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	for i := range products {
		normalizePrices(&products[i])
	}
	c.products = products
	c.loaded = true
	c.logg.Debug(c.logg.WithField(ctx, "products", len(products)), "catalog.loaded")
	return nil
}

// Products returns a deep copy of the current list in catalog order.
func (c *Catalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneProducts(c.products)
}

func (c *Catalog) Get(id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := indexByID(c.products, id)
	if idx < 0 {
		return Product{}, ErrProductNotFound
	}
	return c.products[idx].Clone(), nil
}

// Search keeps products whose name or category contains query, ignoring case.
func (c *Catalog) Search(query string) []Product {
	return Filter(c.Products(), query, CategoryAll)
}

// Filter narrows by query and category. An empty category or CategoryAll matches every product.
func Filter(products []Product, query, category string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category != "" && category != CategoryAll && p.Category != category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories lists the distinct product categories in first-seen order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok || p.Category == "" {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Cheapest returns the lowest available, positive price of a product.
func Cheapest(p Product) (SupermarketPrice, bool) {
	var (
		best  SupermarketPrice
		found bool
	)
	for _, entry := range p.Prices {
		if !entry.Available || !entry.Price.IsPositive() {
			continue
		}
		if !found || entry.Price.LessThan(best.Price) {
			best = entry
			found = true
		}
	}
	return best, found
}

// UpdatePrice sets one supermarket price, marks it available and appends a history entry.
func (c *Catalog) UpdatePrice(ctx context.Context, id string, supermarket enums.Supermarket, price decimal.Decimal) (Product, error) {
	if !supermarket.IsValid() {
		return Product{}, fmt.Errorf("%w: %q", ErrInvalidSupermarket, supermarket)
	}
	var updated Product
	err := c.mutate(ctx, func(products []Product, now time.Time) ([]Product, Event, error) {
		idx := indexByID(products, id)
		if idx < 0 {
			return nil, Event{}, ErrProductNotFound
		}
		applyPrice(&products[idx], supermarket, price, now)
		updated = products[idx].Clone()
		return products, Event{Kind: EventPriceUpdated, ProductIDs: []string{id}, Updated: 1}, nil
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

// AddProduct creates a product with a generated id, a full price table and one history entry
// per priced supermarket.
func (c *Catalog) AddProduct(ctx context.Context, in NewProduct) (Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	for supermarket := range in.Prices {
		if !supermarket.IsValid() {
			return Product{}, fmt.Errorf("%w: %q", ErrInvalidSupermarket, supermarket)
		}
	}

	var created Product
	err := c.mutate(ctx, func(products []Product, now time.Time) ([]Product, Event, error) {
		p := Product{
			ID:           c.newID(),
			Name:         name,
			Description:  in.Description,
			Category:     defaultString(in.Category, DefaultCategory),
			Unit:         defaultString(in.Unit, DefaultUnit),
			Image:        defaultString(in.Image, PlaceholderImage),
			Weight:       cloneDecimal(in.Weight),
			WeightUnit:   cloneString(in.WeightUnit),
			Pieces:       cloneInt(in.Pieces),
			Nutrition:    in.Nutrition.Clone(),
			Prices:       priceTable(in.Prices),
			PriceHistory: []PricePoint{},
		}
		seedHistory(&p, now)
		created = p.Clone()
		return append(products, p), Event{Kind: EventProductAdded, ProductIDs: []string{p.ID}, Added: 1}, nil
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

// DeleteProduct removes a product together with its history.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	return c.mutate(ctx, func(products []Product, now time.Time) ([]Product, Event, error) {
		idx := indexByID(products, id)
		if idx < 0 {
			return nil, Event{}, ErrProductNotFound
		}
		products = append(products[:idx], products[idx+1:]...)
		return products, Event{Kind: EventProductDeleted, ProductIDs: []string{id}}, nil
	})
}

type mutation func(products []Product, now time.Time) ([]Product, Event, error)

// mutate runs fn against a copy of the list, persists the result and only then swaps it in.
// A failed save leaves the in-memory list untouched.
func (c *Catalog) mutate(ctx context.Context, fn mutation) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	now := c.now()
	next, event, err := fn(cloneProducts(c.products), now)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.persist(ctx, next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.products = next
	c.mu.Unlock()

	event.At = now
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"event":    string(event.Kind),
		"products": event.ProductIDs,
		"updated":  event.Updated,
		"added":    event.Added,
	}), "catalog.mutated")
	c.publish(event)
	return nil
}

func (c *Catalog) persist(ctx context.Context, products []Product) error {
	raw, err := encodeProducts(products)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := c.store.Save(ctx, c.key, raw); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

func applyPrice(p *Product, supermarket enums.Supermarket, price decimal.Decimal, now time.Time) {
	for i := range p.Prices {
		if p.Prices[i].Supermarket == supermarket {
			p.Prices[i].Price = price
			p.Prices[i].Available = true
			p.PriceHistory = append(p.PriceHistory, PricePoint{
				Supermarket: supermarket,
				Price:       price,
				Timestamp:   now,
			})
			return
		}
	}
	p.Prices = append(p.Prices, SupermarketPrice{Supermarket: supermarket, Price: price, Available: true})
	normalizePrices(p)
	p.PriceHistory = append(p.PriceHistory, PricePoint{Supermarket: supermarket, Price: price, Timestamp: now})
}

func encodeProducts(products []Product) (string, error) {
	if products == nil {
		products = []Product{}
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeProducts(raw string) ([]Product, error) {
	var products []Product
	if strings.TrimSpace(raw) == "" {
		return []Product{}, nil
	}
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
