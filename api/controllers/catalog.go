package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/api/responses"
	"github.com/angelmondragon/cestaprecios/api/validators"
	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/pkg/enums"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

const (
	maxQueryLength   = 100
	maxProductsLimit = 500
)

// CatalogService is the catalog surface the HTTP layer reads and edits.
type CatalogService interface {
	Products() []catalog.Product
	Get(id string) (catalog.Product, error)
	Categories() []string
	UpdatePrice(ctx context.Context, id string, supermarket enums.Supermarket, price decimal.Decimal) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type supermarketView struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type productView struct {
	catalog.Product
	Cheapest *catalog.SupermarketPrice `json:"cheapest,omitempty"`
}

type updatePriceRequest struct {
	Supermarket string          `json:"supermarket" validate:"required,supermarket"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
}

func ListSupermarkets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := enums.Supermarkets()
		out := make([]supermarketView, 0, len(list))
		for _, s := range list {
			out = append(out, supermarketView{Name: s.String(), Logo: s.Logo()})
		}
		responses.WriteSuccess(w, out)
	}
}

// ListCategories prepends the "all" filter value to the catalog categories.
func ListCategories(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, append([]string{catalog.CategoryAll}, svc.Categories()...))
	}
}

// ListProducts filters by ?q=, ?category= and ?supermarket= (products with an available price
// there). ?limit= caps the result; 0 returns every match.
func ListProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		query := validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLength)
		category := validators.SanitizeString(r.URL.Query().Get("category"), maxQueryLength)
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxProductsLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supermarket, bySupermarket, err := validators.ParseQuerySupermarket(r, "supermarket")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products := catalog.Filter(svc.Products(), query, category)
		if bySupermarket {
			products = availableAt(products, supermarket)
		}
		if limit > 0 && len(products) > limit {
			products = products[:limit]
		}
		out := make([]productView, 0, len(products))
		for _, p := range products {
			out = append(out, newProductView(p))
		}
		responses.WriteSuccess(w, out)
	}
}

func GetProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "productId"))
		product, err := svc.Get(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, catalogError(err, id))
			return
		}
		responses.WriteSuccess(w, newProductView(product))
	}
}

// UpdateProductPrice sets one supermarket price and appends to the history.
func UpdateProductPrice(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "productId"))

		var payload updatePriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdatePrice(r.Context(), id, enums.ParseSupermarket(payload.Supermarket), payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, catalogError(err, id))
			return
		}
		responses.WriteSuccess(w, newProductView(product))
	}
}

func DeleteProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "productId"))
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, catalogError(err, id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func availableAt(products []catalog.Product, supermarket enums.Supermarket) []catalog.Product {
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if row, ok := p.PriceAt(supermarket); ok && row.Available {
			out = append(out, p)
		}
	}
	return out
}

func newProductView(p catalog.Product) productView {
	view := productView{Product: p}
	if cheapest, ok := catalog.Cheapest(p); ok {
		view.Cheapest = &cheapest
	}
	return view
}

// catalogError maps catalog sentinels onto API error codes.
func catalogError(err error, productID string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	case errors.Is(err, catalog.ErrInvalidSupermarket):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "supermarket is not supported")
	case errors.Is(err, catalog.ErrInvalidProduct):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog store unavailable")
	}
}
