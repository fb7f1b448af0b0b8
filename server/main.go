package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/config"
	"github.com/meikuraledutech/estimate/httpapi"
	"github.com/meikuraledutech/estimate/postgres"
	"github.com/meikuraledutech/estimate/sqlite"
)

type closingStore interface {
	estimate.Store
	Close() error
}

func main() {
	configPath := flag.String("config", os.Getenv("ESTIMATE_CONFIG"), "path to a YAML config file")
	migrate := flag.Bool("migrate", true, "create tables on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Error("open store failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrate {
		if err := store.CreateSchema(ctx); err != nil {
			logger.Error("create schema failed", "error", err)
			os.Exit(1)
		}
	}

	app := httpapi.New(store, logger, cfg.Sessions.IdleTTL)
	logger.Info("listening", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
	if err := app.Listen(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, db config.DatabaseConfig) (closingStore, error) {
	if db.Driver == "postgres" {
		return postgres.Open(ctx, db.URL)
	}
	return sqlite.Open(db.URL)
}
