package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/cestaprecios/api/controllers"
	scancontrollers "github.com/angelmondragon/cestaprecios/api/controllers/scan"
	"github.com/angelmondragon/cestaprecios/api/middleware"
	"github.com/angelmondragon/cestaprecios/internal/scan"
	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/kvstore"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
	"github.com/angelmondragon/cestaprecios/pkg/redis"
)

const idempotencyScope = "idempotency"

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	catalogService controllers.CatalogService,
	scanService scan.Service,
	redisClient *redis.Client,
	readiness map[string]kvstore.Pinger,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	// Without redis there is nothing to key replays or counters on; both middlewares pass through.
	var (
		idempotencyStore middleware.IdempotencyStore
		rateStore        middleware.RateLimiterStore
	)
	if redisClient != nil {
		idempotencyStore = redis.NewCache(redisClient, idempotencyScope)
		rateStore = redisClient
	}
	barcodePolicy := middleware.NewRateLimitPolicy("barcodes", cfg.Lookup.RateWindow, cfg.Lookup.RateLimit)
	maxImageBytes := cfg.OCR.MaxBytes()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.RequestSize(maxImageBytes))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/supermarkets", controllers.ListSupermarkets())
		r.Get("/categories", controllers.ListCategories(catalogService, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(catalogService, logg))
			r.Get("/{productId}", controllers.GetProduct(catalogService, logg))
			r.Patch("/{productId}/prices", controllers.UpdateProductPrice(catalogService, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(catalogService, logg))
		})

		r.Post("/receipts", scancontrollers.StageReceipt(scanService, logg))
		r.Post("/receipts/image", scancontrollers.StageReceiptImage(scanService, maxImageBytes, logg))
		r.With(middleware.RateLimit(barcodePolicy, rateStore, logg)).
			Post("/barcodes/{code}", scancontrollers.StageBarcode(scanService, logg))

		r.Route("/staging", func(r chi.Router) {
			r.Post("/manual", scancontrollers.StageManual(scanService, logg))
			r.Get("/{sessionId}", scancontrollers.GetSession(scanService, logg))
			r.Patch("/{sessionId}/candidates/{index}", scancontrollers.EditCandidate(scanService, logg))
			r.Delete("/{sessionId}/candidates/{index}", scancontrollers.RemoveCandidate(scanService, logg))
			r.Post("/{sessionId}/confirm", scancontrollers.ConfirmSession(scanService, logg))
			r.Post("/{sessionId}/cancel", scancontrollers.CancelSession(scanService, logg))
		})
	})

	return r
}
