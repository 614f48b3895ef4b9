// Command sweep-orders cancels unpaid orders older than the grace window
// once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/storage"
	"github.com/xenking/masterpol/internal/sweeper"
)

func main() {
	var (
		databaseURL string
		grace       time.Duration
		concurrency int
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "postgres:// URL or SQLite DSN (or DATABASE_URL env)")
	flag.DurationVar(&grace, "grace", sweeper.DefaultConfig().GraceWindow, "age after which unpaid created orders are cancelled")
	flag.IntVar(&concurrency, "concurrency", sweeper.DefaultConfig().Concurrency, "orders cancelled in parallel")
	flag.BoolVar(&dryRun, "dry-run", false, "only report the orders that would be cancelled")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Error("Database URL is required: set --database-url or DATABASE_URL")
		_ = lg.Sync()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	err = run(ctx, lg, databaseURL, grace, concurrency, dryRun)
	cancel()
	if err != nil {
		lg.Error("Sweep failed", zap.Error(err))
		_ = lg.Sync()
		os.Exit(1)
	}
	_ = lg.Sync()
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, grace time.Duration, concurrency int, dryRun bool) error {
	store, err := storage.Open(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = store.Close() }()

	orders := order.NewService(store.Products, store.Orders)
	sw, err := sweeper.New(orders, lg, sweeper.Config{GraceWindow: grace, Concurrency: concurrency}, noop.NewMeterProvider())
	if err != nil {
		return errors.Wrap(err, "create sweeper")
	}
	now := time.Now()

	if dryRun {
		expired, err := sw.Expired(ctx, now, grace)
		if err != nil {
			return err
		}
		for _, o := range expired {
			lg.Info("Would cancel order",
				zap.String("id", o.ID),
				zap.Int64("partner_id", o.PartnerID),
				zap.Time("created_at", o.CreatedAt),
			)
		}
		lg.Info("Dry run completed", zap.Int("expired", len(expired)))
		return nil
	}

	n, err := sw.Sweep(ctx, now, grace)
	if err != nil {
		return errors.Wrap(err, "sweep")
	}
	lg.Info("Sweep completed", zap.Int("cancelled", n), zap.Duration("grace", grace))
	return nil
}
