package backends

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/db"
	"github.com/angelmondragon/cestaprecios/pkg/kvstore"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
	"github.com/angelmondragon/cestaprecios/pkg/migrate"
	"github.com/angelmondragon/cestaprecios/pkg/redis"
)

// Backends holds the connections opened at boot. Readiness lists the pingers probed by
// /health/ready.
type Backends struct {
	Store     kvstore.Store
	Redis     *redis.Client
	Readiness map[string]kvstore.Pinger

	closers []io.Closer
}

// Close releases connections in reverse open order.
func (b *Backends) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i].Close())
	}
	return err
}

// Open connects redis when configured and selects the catalog blob store by driver.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backends, error) {
	b := &Backends{Readiness: map[string]kvstore.Pinger{}}

	if cfg.Redis.Configured() {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		b.Redis = client
		b.closers = append(b.closers, client)
		b.Readiness["redis"] = client
	}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		memory := kvstore.NewMemory()
		b.Store = memory
		b.Readiness["store"] = memory

	case config.StoreDriverRedis:
		if b.Redis == nil {
			return nil, multierr.Append(fmt.Errorf("redis store selected without redis config"), b.Close())
		}
		b.Store = b.Redis

	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		client, err := db.New(ctx, cfg.Store.Driver, cfg.DB, logg)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("bootstrap database: %w", err), b.Close())
		}
		b.closers = append(b.closers, client)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(fmt.Errorf("run migrations: %w", err), b.Close())
		}
		blobs := db.NewBlobStore(client)
		b.Store = blobs
		b.Readiness["store"] = blobs

	default:
		return nil, multierr.Append(fmt.Errorf("unsupported store driver %q", cfg.Store.Driver), b.Close())
	}

	return b, nil
}
