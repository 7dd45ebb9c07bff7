package health

import (
	"context"
	"time"
)

// Pinger is the liveness hook exposed by the state store and the
// repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// PingChecker probes a dependency through its own Ping method.
type PingChecker struct {
	Target Pinger
}

// NewPingChecker wraps a Pinger as a Checker.
func NewPingChecker(target Pinger) *PingChecker {
	return &PingChecker{Target: target}
}

// Check performs the ping.
func (p *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if err := p.Target.Ping(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   err.Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   "ping ok",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type.
func (p *PingChecker) Type() CheckType {
	return CheckTypePing
}
