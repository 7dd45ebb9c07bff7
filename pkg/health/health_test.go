package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/metrics"
)

func TestHTTPCheckerHealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())

	assert.True(t, result.Healthy, result.Message)
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.Equal(t, CheckTypeHTTP, NewHTTPChecker(server.URL).Type())
}

func TestHTTPCheckerUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "500")
}

func TestHTTPCheckerStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithStatusRange(200, 200)
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy, "201 outside 200-200 must be unhealthy")
}

func TestHTTPCheckerSendsHeaders(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithHeader("X-Api-Key", "secret")
	result := checker.Check(context.Background())

	require.True(t, result.Healthy)
	assert.Equal(t, "secret", got.Load())
}

func TestHTTPCheckerUnreachable(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1").WithTimeout(200 * time.Millisecond)
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	result := NewTCPChecker(ln.Addr().String()).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)

	result = NewTCPChecker("127.0.0.1:1").WithTimeout(200 * time.Millisecond).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker(PingerFunc(func(ctx context.Context) error { return nil }))
	result := ok.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypePing, ok.Type())

	down := NewPingChecker(PingerFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))
	result = down.Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection refused")
}

func TestStatusRequiresConsecutiveFailures(t *testing.T) {
	cfg := Config{Retries: 3}
	status := NewStatus()

	fail := Result{Healthy: false, CheckedAt: time.Now()}
	pass := Result{Healthy: true, CheckedAt: time.Now()}

	status.Update(fail, cfg)
	status.Update(fail, cfg)
	assert.True(t, status.Healthy, "below threshold stays healthy")

	status.Update(fail, cfg)
	assert.False(t, status.Healthy, "third consecutive failure flips")

	status.Update(pass, cfg)
	assert.True(t, status.Healthy, "one success recovers")
	assert.Equal(t, 0, status.ConsecutiveFailures)
}

func TestStatusStartPeriod(t *testing.T) {
	status := NewStatus()
	assert.False(t, status.InStartPeriod(Config{}))
	assert.True(t, status.InStartPeriod(Config{StartPeriod: time.Minute}))

	status.StartedAt = time.Now().Add(-2 * time.Minute)
	assert.False(t, status.InStartPeriod(Config{StartPeriod: time.Minute}))
}

type flakyChecker struct {
	healthy atomic.Bool
	calls   atomic.Int32
}

func (f *flakyChecker) Check(ctx context.Context) Result {
	f.calls.Add(1)
	return Result{Healthy: f.healthy.Load(), Message: "probe", CheckedAt: time.Now()}
}

func (f *flakyChecker) Type() CheckType { return CheckTypePing }

func TestMonitorAppliesRetryThreshold(t *testing.T) {
	checker := &flakyChecker{}
	checker.healthy.Store(true)

	mon := NewMonitor(Config{Interval: 10 * time.Millisecond, Timeout: time.Second, Retries: 2})
	mon.Register("model-service", checker)
	mon.Start()
	defer mon.Stop()

	require.Eventually(t, func() bool {
		return checker.calls.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	snap := mon.Snapshot()
	assert.True(t, snap["model-service"].Healthy)

	checker.healthy.Store(false)
	require.Eventually(t, func() bool {
		return !mon.Snapshot()["model-service"].Healthy
	}, 2*time.Second, 5*time.Millisecond, "two consecutive failures should flip the status")

	h := metrics.GetHealth()
	assert.Contains(t, h.Components, "model-service")

	checker.healthy.Store(true)
	require.Eventually(t, func() bool {
		return mon.Snapshot()["model-service"].Healthy
	}, 2*time.Second, 5*time.Millisecond)
}
