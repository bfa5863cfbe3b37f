package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cestaprecios/api/routes"
	"github.com/angelmondragon/cestaprecios/internal/backends"
	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/internal/lookup"
	"github.com/angelmondragon/cestaprecios/internal/ocr"
	"github.com/angelmondragon/cestaprecios/internal/scan"
	"github.com/angelmondragon/cestaprecios/internal/staging"
	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/env"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
	"github.com/angelmondragon/cestaprecios/pkg/metrics"
	"github.com/angelmondragon/cestaprecios/pkg/pubsub"
	"github.com/angelmondragon/cestaprecios/pkg/redis"
)

const (
	lookupCacheScope = "off"
	shutdownTimeout  = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.ResolvedLogFormat(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backends.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logg.Error(context.Background(), "error closing backends", err)
		}
	}()

	cat, err := catalog.New(catalog.Options{
		Store:  b.Store,
		Key:    cfg.Store.Key,
		Logger: logg,
		Seed: catalog.SeedOptions{
			Samples:  cfg.Seed.HistorySamples,
			Interval: cfg.Seed.HistoryInterval,
			Variance: cfg.Seed.Variance,
		},
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog", err)
		os.Exit(1)
	}
	if err := cat.Load(ctx); err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	events, err := wireEvents(ctx, cfg, logg, cat)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	if events != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			events.publisher.Flush(flushCtx)
			if err := events.client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}

	lookupOpts := []lookup.Option{
		lookup.WithHTTPClient(&http.Client{Timeout: cfg.Lookup.Timeout}),
		lookup.WithBaseURL(cfg.Lookup.BaseURL),
		lookup.WithUserAgent(cfg.Lookup.UserAgent),
		lookup.WithLogger(logg),
	}
	if cfg.FeatureFlags.LookupCache && b.Redis != nil {
		lookupOpts = append(lookupOpts, lookup.WithCache(redis.NewCache(b.Redis, lookupCacheScope), cfg.Lookup.CacheTTL))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := staging.NewRegistry(cfg.Staging.SessionTTL)
	go sweepSessions(ctx, logg, sessions, cfg.Staging.SweepInterval)

	scanService, err := scan.NewService(scan.ServiceParams{
		Catalog: cat,
		Lookup:  lookup.NewClient(lookupOpts...),
		OCR: ocr.New(cfg.OCR.Endpoint,
			ocr.WithAPIKey(cfg.OCR.APIKey),
			ocr.WithTimeout(cfg.OCR.Timeout),
		),
		Sessions: sessions,
		Metrics:  metrics.NewScanMetrics(registry),
		Logger:   logg,
		Language: cfg.OCR.Language,
	})
	if err != nil {
		logg.Error(ctx, "failed to create scan service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"store":  cfg.Store.Driver,
		"redis":  b.Redis != nil,
		"ocr":    cfg.OCR.Endpoint != "",
		"pubsub": events != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			cat,
			scanService,
			b.Redis,
			b.Readiness,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

// sweepSessions drops staging sessions idle past their TTL until ctx is done.
func sweepSessions(ctx context.Context, logg *logger.Logger, sessions *staging.Registry, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := sessions.Sweep(); len(expired) > 0 {
				logg.Info(logg.WithField(ctx, "expired", len(expired)), "staging.sessions_swept")
			}
		}
	}
}

type eventWiring struct {
	client    *pubsub.Client
	publisher *pubsub.EventPublisher
}

// wireEvents forwards catalog events to Pub/Sub when enabled.
func wireEvents(ctx context.Context, cfg *config.Config, logg *logger.Logger, cat *catalog.Catalog) (*eventWiring, error) {
	if !cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, err
	}
	publisher := pubsub.NewEventPublisher(client.CatalogPublisher(), logg)
	cat.Subscribe(func(event catalog.Event) {
		if err := publisher.PublishJSON(context.Background(), string(event.Kind), event.At, event); err != nil {
			logg.Error(context.Background(), "catalog.event_encode_failed", err)
		}
	})
	return &eventWiring{client: client, publisher: publisher}, nil
}
