package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

// Monitor runs registered checkers on the configured interval and feeds
// the process health registry and the voltgrid_dependency_up gauge. Unlike
// a bare ping loop it applies the retry threshold, so one slow probe does
// not flip /health.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	checks map[string]*monitoredCheck
	stopCh chan struct{}
	doneCh chan struct{}
}

type monitoredCheck struct {
	checker Checker
	status  *Status
}

// NewMonitor creates a monitor. Register checks before Start.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultConfig().Retries
	}
	return &Monitor{
		cfg:    cfg,
		logger: log.WithComponent("health-monitor"),
		checks: make(map[string]*monitoredCheck),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Register adds a dependency under the name used in the health registry
// and the dependency gauge.
func (m *Monitor) Register(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = &monitoredCheck{
		checker: checker,
		status:  NewStatus(),
	}
	metrics.RegisterComponent(name, true, "")
}

// Start probes immediately, then on every interval tick until Stop.
func (m *Monitor) Start() {
	go func() {
		defer close(m.doneCh)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.runChecks()
		for {
			select {
			case <-ticker.C:
				m.runChecks()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight round to finish.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// Snapshot returns a copy of the current status per dependency.
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Status, len(m.checks))
	for name, check := range m.checks {
		out[name] = *check.status
	}
	return out
}

func (m *Monitor) runChecks() {
	m.mu.Lock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.runCheck(name)
	}
}

func (m *Monitor) runCheck(name string) {
	m.mu.Lock()
	check, ok := m.checks[name]
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	result := check.checker.Check(ctx)
	cancel()

	m.mu.Lock()
	if !result.Healthy && check.status.InStartPeriod(m.cfg) {
		// Still booting; try again next tick without counting the miss.
		m.mu.Unlock()
		return
	}
	wasHealthy := check.status.Healthy
	check.status.Update(result, m.cfg)
	healthy := check.status.Healthy
	m.mu.Unlock()

	metrics.UpdateComponent(name, healthy, result.Message)
	if healthy {
		metrics.DependencyUp.WithLabelValues(name).Set(1)
	} else {
		metrics.DependencyUp.WithLabelValues(name).Set(0)
	}

	if wasHealthy && !healthy {
		m.logger.Warn().Str("dependency", name).Str("detail", result.Message).Msg("dependency unhealthy")
	}
	if !wasHealthy && healthy {
		m.logger.Info().Str("dependency", name).Msg("dependency recovered")
	}
}
