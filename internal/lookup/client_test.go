package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/angelmondragon/cestaprecios/pkg/config"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
	"github.com/angelmondragon/cestaprecios/pkg/redis"
)

const colaBody = `{
  "code": "5449000000996",
  "status": 1,
  "product": {
    "product_name": "Coca-Cola",
    "product_name_es": "Coca-Cola Original",
    "image_front_url": "https://images.test/cola.jpg",
    "categories": "Bebidas, Refrescos, Colas",
    "quantity": "6 x 33 cl",
    "brands": "Coca-Cola",
    "nutriments": {"energy-kcal_100g": 42, "sugars_100g": "10.6", "salt_100g": ""},
    "ingredients_text": "Agua carbonatada, azúcar",
    "nutrition_grades": "E",
    "nova_group": 4
  }
}`

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubClient(t *testing.T, status int, body string, opts ...Option) (*Client, *string) {
	t.Helper()
	var captured string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req.URL.String()
		if req.Header.Get("User-Agent") == "" {
			t.Fatalf("user agent header missing")
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{},
		}, nil
	})
	all := append([]Option{WithBaseURL("http://off.test/"), WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	return NewClient(all...), &captured
}

func TestLookupMapsProduct(t *testing.T) {
	client, captured := stubClient(t, http.StatusOK, colaBody)

	product, err := client.Lookup(context.Background(), " 5449000000996 ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if *captured != "http://off.test/api/v2/product/5449000000996.json" {
		t.Fatalf("unexpected URL %q", *captured)
	}
	if product.Name == nil || *product.Name != "Coca-Cola Original" {
		t.Fatalf("expected spanish name, got %v", product.Name)
	}
	if product.Category == nil || *product.Category != "Bebidas" {
		t.Fatalf("expected first category, got %v", product.Category)
	}
	if product.Pieces == nil || *product.Pieces != 6 || product.WeightUnit == nil || *product.WeightUnit != "cl" {
		t.Fatalf("quantity not parsed: %+v", product)
	}
	if product.Weight == nil || product.Weight.String() != "33" {
		t.Fatalf("unexpected weight %v", product.Weight)
	}

	n := product.Nutrition
	if n == nil {
		t.Fatalf("expected nutrition")
	}
	if n.Calories == nil || n.Calories.String() != "42" {
		t.Fatalf("unexpected calories %v", n.Calories)
	}
	if n.Sugars == nil || n.Sugars.String() != "10.6" {
		t.Fatalf("string nutriment not parsed: %v", n.Sugars)
	}
	if n.Salt != nil {
		t.Fatalf("blank nutriment should be absent, got %v", n.Salt)
	}
	if n.NutriScore == nil || *n.NutriScore != "e" {
		t.Fatalf("unexpected nutriscore %v", n.NutriScore)
	}
	if n.NovaGroup == nil || *n.NovaGroup != 4 {
		t.Fatalf("unexpected nova group %v", n.NovaGroup)
	}
	if n.Ingredients == nil || !strings.HasPrefix(*n.Ingredients, "Agua") {
		t.Fatalf("ingredients should fall back to default language, got %v", n.Ingredients)
	}
}

func TestLookupNotFound(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"status zero": {status: http.StatusOK, body: `{"code":"12345678","status":0,"status_verbose":"product not found"}`},
		"http 404":    {status: http.StatusNotFound, body: `{}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client, _ := stubClient(t, tc.status, tc.body)
			_, err := client.Lookup(context.Background(), "12345678")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				t.Fatalf("expected not found code, got %v", err)
			}
		})
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	client, _ := stubClient(t, http.StatusBadGateway, "upstream down")
	_, err := client.Lookup(context.Background(), "12345678")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("status missing from error %q", err.Error())
	}
}

func TestValidateBarcode(t *testing.T) {
	valid := []string{"12345678", "5449000000996", "12345678901234"}
	for _, code := range valid {
		if _, err := ValidateBarcode(code); err != nil {
			t.Fatalf("expected %q valid, got %v", code, err)
		}
	}
	invalid := []string{"", "1234567", "123456789012345", "12345abc"}
	for _, code := range invalid {
		if _, err := ValidateBarcode(code); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected %q invalid, got %v", code, err)
		}
	}
}

func TestLookupRejectsInvalidBarcodeWithoutCalling(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatalf("transport should not be called")
		return nil, nil
	})
	client := NewClient(WithHTTPClient(&http.Client{Transport: rt}))
	if _, err := client.Lookup(context.Background(), "abc"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := redis.New(context.Background(), config.RedisConfig{Address: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.Contains(r.URL.Path, "00000000") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":0}`)
			return
		}
		_, _ = io.WriteString(w, colaBody)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithCache(redis.NewCache(rc, "off"), time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		product, err := client.Lookup(ctx, "5449000000996")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if product.Name == nil || *product.Name != "Coca-Cola Original" {
			t.Fatalf("lookup %d returned %+v", i, product)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}
	if ttl := mr.TTL(rc.CacheKey("off", "5449000000996")); ttl != time.Hour {
		t.Fatalf("unexpected cache ttl %v", ttl)
	}

	for i := 0; i < 2; i++ {
		if _, err := client.Lookup(ctx, "00000000"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("misses must not be cached, got %d upstream calls", calls.Load())
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw    string
		amount string
		unit   string
		pieces int
		ok     bool
	}{
		{raw: "500 g", amount: "500", unit: "g", ok: true},
		{raw: "1,5 L", amount: "1.5", unit: "l", ok: true},
		{raw: "6 x 33 cl", amount: "33", unit: "cl", pieces: 6, ok: true},
		{raw: "12 uds", pieces: 12, ok: true},
		{raw: "1 kg e", amount: "1", unit: "kg", ok: true},
		{raw: "grande"},
		{raw: "3 tazas"},
		{raw: ""},
	}
	for _, tt := range tests {
		q, ok := ParseQuantity(tt.raw)
		if ok != tt.ok {
			t.Fatalf("%q: expected ok=%v", tt.raw, tt.ok)
		}
		if !ok {
			continue
		}
		if tt.amount != "" && (q.Amount == nil || q.Amount.String() != tt.amount) {
			t.Fatalf("%q: unexpected amount %v", tt.raw, q.Amount)
		}
		if tt.unit != "" && (q.Unit == nil || *q.Unit != tt.unit) {
			t.Fatalf("%q: unexpected unit %v", tt.raw, q.Unit)
		}
		if tt.pieces != 0 && (q.Pieces == nil || *q.Pieces != tt.pieces) {
			t.Fatalf("%q: unexpected pieces %v", tt.raw, q.Pieces)
		}
	}
}
