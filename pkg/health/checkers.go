package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// PingCheck fails when ping does. Use it with a store's Ping.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// HeartbeatCheck fails when the latest beat reported by last is older than
// maxAge. Before the first beat the check counts from its own creation.
func HeartbeatCheck(last func() time.Time, maxAge time.Duration) CheckFunc {
	return heartbeatCheck(last, maxAge, time.Now)
}

func heartbeatCheck(last func() time.Time, maxAge time.Duration, now func() time.Time) CheckFunc {
	created := now()
	return func(context.Context) error {
		beat := last()
		if beat.IsZero() {
			beat = created
		}
		if age := now().Sub(beat); age > maxAge {
			return errors.Errorf("last heartbeat %s ago exceeds %s", age.Round(time.Second), maxAge)
		}
		return nil
	}
}
