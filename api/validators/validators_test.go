package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
)

type priceBody struct {
	Supermarket string          `json:"supermarket" validate:"required,supermarket"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest priceBody
	if err := DecodeJSONBody(jsonRequest(`{"supermarket":"carrefour","price":"1.45"}`), &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dest.Price.Equal(decimal.RequireFromString("1.45")) {
		t.Fatalf("unexpected price %s", dest.Price)
	}
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	var dest priceBody
	err := DecodeJSONBody(jsonRequest(`{"supermarket":"Aldi","price":0}`), &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details got %T", typed.Details())
	}
	if !strings.Contains(details["supermarket"], "Mercadona") {
		t.Fatalf("expected vocabulary in message, got %q", details["supermarket"])
	}
	if details["price"] != "must be greater than 0" {
		t.Fatalf("unexpected price message %q", details["price"])
	}
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	req := jsonRequest(`{"supermarket":"Lidl","price":"1.00"}`)
	req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 8)

	var dest priceBody
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodePayloadTooLarge) {
		t.Fatalf("expected payload too large got %v", err)
	}
}

func TestParseQuerySupermarket(t *testing.T) {
	got, ok, err := ParseQuerySupermarket(httptest.NewRequest(http.MethodGet, "/?supermarket=%20MERCADONA%20", nil), "supermarket")
	if err != nil || !ok || got != enums.SupermarketMercadona {
		t.Fatalf("unexpected result %q %v %v", got, ok, err)
	}
	if _, ok, err := ParseQuerySupermarket(httptest.NewRequest(http.MethodGet, "/", nil), "supermarket"); ok || err != nil {
		t.Fatalf("expected absent filter")
	}
	if _, _, err := ParseQuerySupermarket(httptest.NewRequest(http.MethodGet, "/?supermarket=other", nil), "supermarket"); err == nil {
		t.Fatalf("expected the sentinel to be rejected")
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("  Atún   en  aceite ", 100); got != "Atún en aceite" {
		t.Fatalf("unexpected collapse %q", got)
	}
	if got := SanitizeString("Atún", 3); got != "Atú" {
		t.Fatalf("unexpected cut %q", got)
	}
}
