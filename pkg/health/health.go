package health

import (
	"context"
	"time"
)

// CheckType identifies how a dependency is probed.
type CheckType string

const (
	CheckTypePing CheckType = "ping"
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result is the outcome of one probe.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config governs probe cadence and the failure threshold.
type Config struct {
	// Interval is the time between probes.
	Interval time.Duration

	// Timeout bounds a single probe.
	Timeout time.Duration

	// Retries is the number of consecutive failures before a dependency
	// is reported unhealthy. A single slow response should not flip the
	// process health.
	Retries int

	// StartPeriod is a grace window after Start during which failures do
	// not count, covering dependencies that boot alongside this process.
	StartPeriod time.Duration
}

// DefaultConfig returns the probe defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
}

// Status accumulates probe results for one dependency.
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
	StartedAt            time.Time
}

// NewStatus starts optimistic: a dependency is healthy until probes prove
// otherwise.
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update folds one result into the status. A success recovers immediately;
// failures only flip the status once the retry threshold is reached.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// InStartPeriod reports whether failures are still forgiven.
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
