package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/masterpol/internal/seed"
	"github.com/xenking/masterpol/internal/storage"
)

func main() {
	var (
		databaseURL string
		dataDir     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "postgres:// URL or SQLite DSN (or DATABASE_URL env)")
	flag.StringVar(&dataDir, "data-dir", "db/seed", "directory with partners, products, employees and sales JSON (optionally .json.gz)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, dataDir); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, dataDir string) error {
	slog.Info("loading seed files", slog.String("dir", dataDir))

	ds, err := seed.Load(ctx, dataDir)
	if err != nil {
		return errors.Wrap(err, "load seed files")
	}

	slog.Info("connecting to database", slog.String("backend", storage.BackendFor(databaseURL)))

	store, err := storage.Open(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = store.Close() }()

	slog.Info("upserting master data",
		slog.Int("partners", len(ds.Partners)),
		slog.Int("products", len(ds.Products)),
		slog.Int("employees", len(ds.Employees)),
		slog.Int("sales", len(ds.Sales)),
	)

	if err := store.Seeder.Seed(ctx, ds); err != nil {
		return errors.Wrap(err, "seed")
	}
	return nil
}
