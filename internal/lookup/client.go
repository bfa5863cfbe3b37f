package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

const (
	DefaultBaseURL        = "https://world.openfoodfacts.org"
	DefaultUserAgent      = "cestaprecios/1.0"
	DefaultCacheTTL       = 24 * time.Hour
	responseBodyReadLimit = int64(1024)
	minBarcodeDigits      = 8
	maxBarcodeDigits      = 14
	productPathTemplate   = "/api/v2/product/%s.json"
)

// ErrNotFound is returned when the food database has no record for a barcode.
var ErrNotFound = errors.New("product not found")

// Cache stores mapped products keyed by barcode. pkg/redis.Cache satisfies it.
type Cache interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Set(ctx context.Context, id, value string, ttl time.Duration) error
}

// Client fetches product metadata from Open Food Facts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      Cache
	cacheTTL   time.Duration
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at a mirror or test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithUserAgent sets the User-Agent header Open Food Facts asks callers to send.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(userAgent)
		if trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithCache enables read-through caching of successful lookups.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds the lookup client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		cacheTTL:   DefaultCacheTTL,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// ValidateBarcode trims the code and checks it is 8 to 14 digits.
func ValidateBarcode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) < minBarcodeDigits || len(trimmed) > maxBarcodeDigits {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "barcode must have between %d and %d digits", minBarcodeDigits, maxBarcodeDigits)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "barcode must contain only digits")
		}
	}
	return trimmed, nil
}

// Lookup resolves a barcode. A missing product returns an error matching ErrNotFound.
func (c *Client) Lookup(ctx context.Context, code string) (*Product, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lookup client not configured")
	}
	code, err := ValidateBarcode(code)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.fromCache(ctx, code); ok {
		return cached, nil
	}

	product, err := c.fetch(ctx, code)
	if err != nil {
		return nil, err
	}
	c.toCache(ctx, code, product)
	return product, nil
}

func (c *Client) fetch(ctx context.Context, code string) (*Product, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + fmt.Sprintf(productPathTemplate, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build product lookup request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute product lookup request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNotFound, "product not found")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "product lookup request failed")
	}

	var apiResp offResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product lookup response")
	}
	if !apiResp.found() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNotFound, "product not found")
	}

	return mapProduct(code, apiResp.Product), nil
}

func (c *Client) fromCache(ctx context.Context, code string) (*Product, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, code)
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"barcode": code, "error": err.Error()}), "lookup.cache_read_failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var product Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "barcode", code), "lookup.cache_entry_invalid")
		return nil, false
	}
	return &product, true
}

func (c *Client) toCache(ctx context.Context, code string, product *Product) {
	if c.cache == nil || product == nil {
		return
	}
	payload, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, code, string(payload), c.cacheTTL); err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"barcode": code, "error": err.Error()}), "lookup.cache_write_failed")
	}
}
