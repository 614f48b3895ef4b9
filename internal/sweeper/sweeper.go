// Package sweeper cancels orders that stayed unpaid past a grace window.
package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/masterpol/internal/domain/order"
)

// ExpiredNote is recorded on orders cancelled by the sweeper.
const ExpiredNote = "Automatically cancelled: no prepayment received within the grace window"

const meterName = "github.com/xenking/masterpol/internal/sweeper"

// Orders is the subset of the order service the sweeper drives.
type Orders interface {
	ListOrders(ctx context.Context, status *order.Status) ([]order.Order, error)
	Transition(ctx context.Context, id string, to order.Status, note string) (*order.Order, error)
}

// Config controls sweep cadence and limits.
type Config struct {
	Interval    time.Duration
	GraceWindow time.Duration
	Concurrency int
	Timeout     time.Duration
}

// DefaultConfig returns the default sweep settings.
func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Minute,
		GraceWindow: 72 * time.Hour,
		Concurrency: 4,
		Timeout:     time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = defaults.GraceWindow
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

// Sweeper finds expired unpaid orders and cancels them.
type Sweeper struct {
	orders Orders
	lg     *zap.Logger
	cfg    Config
	now    func() time.Time

	// serializes sweeps so overlapping runs do not race on the same orders
	mu      sync.Mutex
	lastRun atomic.Int64

	runs      metric.Int64Counter
	cancelled metric.Int64Counter
	skipped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a Sweeper. Instruments are registered on the given meter
// provider.
func New(orders Orders, lg *zap.Logger, cfg Config, mp metric.MeterProvider) (*Sweeper, error) {
	meter := mp.Meter(meterName)

	runs, err := meter.Int64Counter("ledger_sweeper_runs_total",
		metric.WithDescription("Number of sweeps performed"))
	if err != nil {
		return nil, errors.Wrap(err, "runs counter")
	}
	cancelled, err := meter.Int64Counter("ledger_sweeper_cancelled_total",
		metric.WithDescription("Orders cancelled as expired"))
	if err != nil {
		return nil, errors.Wrap(err, "cancelled counter")
	}
	skipped, err := meter.Int64Counter("ledger_sweeper_skipped_total",
		metric.WithDescription("Expired orders that could not be cancelled"))
	if err != nil {
		return nil, errors.Wrap(err, "skipped counter")
	}
	duration, err := meter.Float64Histogram("ledger_sweeper_duration_seconds",
		metric.WithDescription("Sweep duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}

	return &Sweeper{
		orders:    orders,
		lg:        lg.Named("sweeper"),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		runs:      runs,
		cancelled: cancelled,
		skipped:   skipped,
		duration:  duration,
	}, nil
}

// GraceWindow returns the configured grace window.
func (s *Sweeper) GraceWindow() time.Duration {
	return s.cfg.GraceWindow
}

// LastRun returns the completion time of the latest sweep attempt, or the
// zero time if none has finished yet.
func (s *Sweeper) LastRun() time.Time {
	ns := s.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Sweep cancels every order still in the created status without prepayment
// whose creation time plus grace is before now. A grace of zero or less uses
// three days. It returns the number of cancelled orders. Failures on single
// orders are logged and skipped; only a failure to list candidates is
// returned.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	if grace <= 0 {
		grace = DefaultConfig().GraceWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	s.runs.Add(ctx, 1)
	defer func() {
		end := s.now()
		s.duration.Record(ctx, end.Sub(start).Seconds())
		s.lastRun.Store(end.UnixNano())
	}()

	expired, err := s.Expired(ctx, now, grace)
	if err != nil {
		return 0, err
	}

	var (
		n       atomic.Int64
		skipped atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, o := range expired {
		g.Go(func() error {
			if _, err := s.orders.Transition(gctx, o.ID, order.StatusCancelled, ExpiredNote); err != nil {
				skipped.Add(1)
				s.lg.Warn("Failed to cancel expired order",
					zap.String("order_id", o.ID),
					zap.Time("created_at", o.CreatedAt),
					zap.Error(err),
				)
				return nil
			}
			n.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.cancelled.Add(ctx, n.Load())
	s.skipped.Add(ctx, skipped.Load())

	if n.Load() > 0 || skipped.Load() > 0 {
		s.lg.Info("Expired orders swept",
			zap.Int64("cancelled", n.Load()),
			zap.Int64("skipped", skipped.Load()),
			zap.Duration("grace", grace),
		)
	}
	return int(n.Load()), nil
}

// Expired returns the orders a sweep at now would cancel: still created,
// without prepayment, and created before now minus grace.
func (s *Sweeper) Expired(ctx context.Context, now time.Time, grace time.Duration) ([]order.Order, error) {
	if grace <= 0 {
		grace = DefaultConfig().GraceWindow
	}

	created := order.StatusCreated
	candidates, err := s.orders.ListOrders(ctx, &created)
	if err != nil {
		return nil, errors.Wrap(err, "list created orders")
	}

	cutoff := now.Add(-grace)
	var expired []order.Order
	for _, o := range candidates {
		if o.PrepaymentReceived || !o.CreatedAt.Before(cutoff) {
			continue
		}
		expired = append(expired, o)
	}
	return expired, nil
}

// Run sweeps once immediately and then on every interval tick until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.lg.Info("Starting sweeper",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("grace", s.cfg.GraceWindow),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if _, err := s.Sweep(ctx, s.now(), s.cfg.GraceWindow); err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		s.lg.Warn("Sweep failed", zap.Error(err))
	}
}
