package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/db"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

// MaybeRun applies the embedded migrations when the auto-migrate flag is on. The sqlite driver
// always migrates since its file is local to the process.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	driver := cfg.Store.Driver
	if driver != config.StoreDriverPostgres && driver != config.StoreDriverSQLite {
		return nil
	}
	if driver == config.StoreDriverPostgres && !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": driver})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, driver, EmbeddedDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
