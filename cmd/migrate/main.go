package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/db"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
	"github.com/angelmondragon/cestaprecios/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.EmbeddedDir, "goose migrations directory; \"migrations\" runs the embedded set")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.ResolvedLogFormat(),
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.Store.Driver,
	})
	if err := run(ctx, cfg, logg, opts, os.Stdout); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options, stdout io.Writer) (err error) {
	// create and validate only touch files
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		dir := opts.dir
		if dir == migrate.EmbeddedDir {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Fprintln(stdout, "created migration:", path)
		return nil
	case "validate":
		if opts.dir == migrate.EmbeddedDir {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(opts.dir)
		}
		if err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Fprintln(stdout, "migration validation passed")
		return nil
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
	if opts.cmd == "version" && opts.version == "" {
		return errors.New("missing -version for version command")
	}

	driver := cfg.Store.Driver
	if _, err := migrate.Dialect(driver); err != nil {
		return fmt.Errorf("%s=%s has no migrations: %w", config.EnvStoreDriver, driver, err)
	}
	client, err := db.New(ctx, driver, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}

	logg.Info(ctx, "migrate ready")
	if opts.cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, driver, opts.dir, opts.version)
	}
	if err := migrate.Run(ctx, sqlDB, driver, opts.dir, opts.cmd); err != nil {
		return fmt.Errorf("goose %s: %w", opts.cmd, err)
	}
	return nil
}
