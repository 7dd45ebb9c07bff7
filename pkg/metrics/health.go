package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ProbeStatus is the body served by the /health and /ready probes.
// Status is "healthy" or "unhealthy" on /health and "ready" or
// "not_ready" on /ready.
type ProbeStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// componentState is the last condition reported for one dependency.
type componentState struct {
	healthy bool
	message string
	updated time.Time
}

// probeRegistry aggregates dependency conditions reported by the
// collector and the health monitor.
type probeRegistry struct {
	mu         sync.RWMutex
	components map[string]componentState
	startTime  time.Time
	version    string
}

// Critical dependencies a ready node must have.
var criticalComponents = []string{"statestore", "database", "bus"}

var probes = newProbeRegistry()

func newProbeRegistry() *probeRegistry {
	return &probeRegistry{
		components: make(map[string]componentState),
		startTime:  time.Now(),
	}
}

func (r *probeRegistry) set(name string, healthy bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = componentState{
		healthy: healthy,
		message: message,
		updated: time.Now(),
	}
}

// skeleton builds a ProbeStatus carrying the shared fields. Callers hold
// at least the read lock.
func (r *probeRegistry) skeleton(status string) ProbeStatus {
	return ProbeStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]string, len(r.components)),
		Version:    r.version,
		Uptime:     time.Since(r.startTime).String(),
	}
}

// SetVersion sets the version string echoed in probe responses.
func SetVersion(version string) {
	probes.mu.Lock()
	defer probes.mu.Unlock()
	probes.version = version
}

// RegisterComponent records a dependency so the probes report on it.
func RegisterComponent(name string, healthy bool, message string) {
	probes.set(name, healthy, message)
}

// UpdateComponent records the latest condition of a dependency,
// registering it on first use.
func UpdateComponent(name string, healthy bool, message string) {
	probes.set(name, healthy, message)
}

// GetHealth reports liveness: unhealthy when any registered dependency
// is down, healthy otherwise.
func GetHealth() ProbeStatus {
	probes.mu.RLock()
	defer probes.mu.RUnlock()

	st := probes.skeleton("healthy")
	for name, comp := range probes.components {
		if comp.healthy {
			st.Components[name] = "healthy"
			continue
		}
		st.Status = "unhealthy"
		st.Components[name] = "unhealthy: " + comp.message
	}
	return st
}

// GetReadiness reports whether every critical dependency has been
// registered and is healthy.
func GetReadiness() ProbeStatus {
	probes.mu.RLock()
	defer probes.mu.RUnlock()

	st := probes.skeleton("ready")
	for _, name := range criticalComponents {
		comp, ok := probes.components[name]
		switch {
		case !ok:
			st.Status = "not_ready"
			st.Message = "waiting for " + name + " initialization"
			st.Components[name] = "not registered"
		case !comp.healthy:
			st.Status = "not_ready"
			st.Message = "waiting for " + name
			st.Components[name] = "not ready: " + comp.message
		default:
			st.Components[name] = "ready"
		}
	}
	return st
}

// HealthHandler serves the liveness probe.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := GetHealth()
		writeProbe(w, st, st.Status == "healthy")
	}
}

// ReadyHandler serves the readiness probe.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := GetReadiness()
		writeProbe(w, st, st.Status == "ready")
	}
}

func writeProbe(w http.ResponseWriter, st ProbeStatus, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(st)
}
