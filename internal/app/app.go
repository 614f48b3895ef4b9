package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/handler"
	"github.com/xenking/masterpol/internal/storage"
	"github.com/xenking/masterpol/internal/sweeper"
	"github.com/xenking/masterpol/pkg/health"
	"github.com/xenking/masterpol/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the sweeper, and
// handles graceful shutdown. It is the single wiring point for the server.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", storage.BackendFor(cfg.DatabaseURL)),
	)

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Warn("Close store", zap.Error(err))
		}
	}()

	srv, err := newServer(lg, m.TracerProvider(), m.MeterProvider(), cfg, store)
	if err != nil {
		return err
	}
	healthSvc := srv.health
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Sweeper.Enabled {
		g.Go(func() error {
			return srv.sweeper.Run(ctx)
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

type server struct {
	handler http.Handler
	health  *health.Health
	sweeper *sweeper.Sweeper
}

// newServer builds the domain services and the HTTP handler on top of store.
func newServer(lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config, store *storage.Store) (*server, error) {
	opts := []order.Option{order.WithTracerProvider(tp)}
	if cfg.Lifecycle.Strict {
		opts = append(opts, order.WithPolicy(order.Strict))
	}
	orders := order.NewService(store.Products, store.Orders, opts...)
	ratings := partner.NewRatingService(store.Partners)

	sw, err := sweeper.New(orders, lg, cfg.Sweeper.Sweeper(), mp)
	if err != nil {
		return nil, errors.Wrap(err, "create sweeper")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.PingCheck(store.Ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if cfg.Sweeper.Enabled {
		stale := 2*cfg.Sweeper.Interval + cfg.Sweeper.Timeout
		healthSvc.AddLivenessCheck("sweeper", time.Second, health.HeartbeatCheck(sw.LastRun, stale))
	}

	// Health endpoints and API routes on one mux.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(handler.Deps{
		Orders:    orders,
		Partners:  store.Partners,
		Directory: partner.NewDirectory(store.Partners),
		Ratings:   ratings,
		Products:  store.Products,
		Employees: store.Employees,
		Sweeper:   sw,
	}).Register(mux)

	routes := httpmiddleware.MuxRoutes(mux)
	return &server{
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("ledger-api", routes, tp, mp),
			httpmiddleware.LogRequests(routes),
		),
		health:  healthSvc,
		sweeper: sw,
	}, nil
}
