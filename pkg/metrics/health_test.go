package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resetProbes() {
	probes = newProbeRegistry()
}

func TestRegisterComponent(t *testing.T) {
	resetProbes()

	RegisterComponent("statestore", true, "connected")

	if len(probes.components) != 1 {
		t.Errorf("expected 1 component, got %d", len(probes.components))
	}

	comp := probes.components["statestore"]
	if !comp.healthy {
		t.Error("component should be healthy")
	}

	if comp.message != "connected" {
		t.Errorf("expected message 'connected', got '%s'", comp.message)
	}
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetProbes()
	SetVersion("1.0.0")

	RegisterComponent("statestore", true, "")
	RegisterComponent("database", true, "")

	health := GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}

	if len(health.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(health.Components))
	}

	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	resetProbes()

	RegisterComponent("statestore", true, "")
	RegisterComponent("database", false, "connection refused")

	health := GetHealth()

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}

	if health.Components["database"] != "unhealthy: connection refused" {
		t.Errorf("unexpected database status: %s", health.Components["database"])
	}
}

func TestGetReadiness_WaitsForCriticalComponents(t *testing.T) {
	resetProbes()

	// Nothing registered: not ready.
	readiness := GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("expected 'not_ready' with no components, got '%s'", readiness.Status)
	}

	RegisterComponent("statestore", true, "")
	RegisterComponent("database", true, "")
	RegisterComponent("bus", true, "")

	readiness = GetReadiness()
	if readiness.Status != "ready" {
		t.Errorf("expected 'ready' with all critical components up, got '%s'", readiness.Status)
	}

	UpdateComponent("bus", false, "reconnecting")
	readiness = GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("expected 'not_ready' with bus down, got '%s'", readiness.Status)
	}
	if readiness.Message != "waiting for bus" {
		t.Errorf("unexpected message: %s", readiness.Message)
	}
}

func TestHealthHandler(t *testing.T) {
	resetProbes()
	RegisterComponent("statestore", true, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body ProbeStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %s", body.Status)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetProbes()
	RegisterComponent("database", false, "down")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	HealthHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReadyHandler_NotReady(t *testing.T) {
	resetProbes()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	ReadyHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
