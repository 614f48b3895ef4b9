package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func runTimes(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     int
	}{
		{name: "healthy before any run", failures: 0, want: http.StatusOK},
		{name: "below threshold", failures: FailureThreshold - 1, want: http.StatusOK},
		{name: "at threshold", failures: FailureThreshold, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("store", time.Second, failing("connection refused"))
			runTimes(h.probes[0], tt.failures)

			code, body := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.want, code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			assert.Equal(t, map[string]string{"store": "connection refused"}, body.Checks)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("store", time.Second, passing)
	h.AddReadinessCheck("cache", time.Second, failing("cold"))
	h.AddLivenessCheck("sweeper", time.Second, failing("stale"))

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runTimes(h.probes[1], FailureThreshold)
	runTimes(h.probes[2], FailureThreshold)
	code, body = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"cache": "cold"}, body.Checks)
	assert.False(t, h.IsReady())

	h.SetReady(false)
	_, body = serve(t, h.ReadyEndpoint)
	assert.Len(t, body.Checks, 2)
}

func TestProbe_Recovers(t *testing.T) {
	down := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	p := h.probes[0]

	runTimes(p, FailureThreshold)
	_, failed := p.failure()
	assert.True(t, failed)

	down = false
	runTimes(p, 1)
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestProbe_Timeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	runTimes(h.probes[0], FailureThreshold)

	msg, failed := h.probes[0].failure()
	assert.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop_Concurrent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failing("err"))
	h.AddReadinessCheck("ready", time.Second, passing)
	h.SetReady(true)
	h.Start(context.Background(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(passing)(context.Background()))

	err := PingCheck(failing("refused"))(context.Background())
	assert.EqualError(t, err, "ping: refused")
}

func TestHeartbeatCheck(t *testing.T) {
	start := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	now := start
	var beat time.Time

	check := heartbeatCheck(func() time.Time { return beat }, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	now = start.Add(30 * time.Second)
	assert.NoError(t, check(ctx), "grace before the first beat")

	now = start.Add(2 * time.Minute)
	assert.Error(t, check(ctx), "no beat since creation")

	beat = now.Add(-10 * time.Second)
	assert.NoError(t, check(ctx))

	now = beat.Add(time.Minute + time.Second)
	err := check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last heartbeat 1m1s ago")
}
