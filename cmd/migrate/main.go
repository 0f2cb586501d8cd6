package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/punchamoorthee/coinwallet/internal/config"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DBSource == "" {
		slog.Error("DB_SOURCE is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pg, err := store.NewPostgresStore(ctx, cfg.DBSource, cfg.CredentialTTL)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	slog.Info("creating credential table")
	if err := pg.Migrate(ctx); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	purged, err := pg.PurgeExpired(ctx)
	if err != nil {
		slog.Error("purge failed", "error", err)
		os.Exit(1)
	}
	slog.Info("credential store ready", "purged", purged)
}
