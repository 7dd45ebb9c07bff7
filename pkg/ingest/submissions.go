package ingest

import (
	"github.com/voltgrid/voltgrid/pkg/types"
)

// TelemetrySubmission is the wire schema for POST /ingest/station. Optional
// fields are pointers so an absent field is distinguishable from an explicit
// zero: absent fields take defaults, explicit values are validated as given.
type TelemetrySubmission struct {
	StationID         string   `json:"stationId" validate:"required"`
	QueueLength       *int     `json:"queueLength,omitempty" validate:"omitempty,min=0"`
	AvgServiceTime    *float64 `json:"avgServiceTime,omitempty" validate:"omitempty,min=0"`
	AvailableChargers *int     `json:"availableChargers,omitempty" validate:"omitempty,min=0"`
	TotalChargers     *int     `json:"totalChargers,omitempty" validate:"omitempty,min=1"`
	FaultRate         *float64 `json:"faultRate,omitempty" validate:"omitempty,min=0,max=1"`
	AvailablePower    *float64 `json:"availablePower,omitempty" validate:"omitempty,min=0"`
	MaxCapacity       *float64 `json:"maxCapacity,omitempty" validate:"omitempty,min=0"`
	Timestamp         *int64   `json:"timestamp,omitempty"`
}

// telemetry materializes the submission with defaults applied. A station
// that omits totalChargers is assumed to have at least the chargers it
// reports available.
func (s TelemetrySubmission) telemetry() types.StationTelemetry {
	t := types.StationTelemetry{
		StationID:     s.StationID,
		TotalChargers: 1,
		Timestamp:     now(),
	}
	if s.QueueLength != nil {
		t.QueueLength = *s.QueueLength
	}
	if s.AvgServiceTime != nil {
		t.AvgServiceTime = *s.AvgServiceTime
	}
	if s.AvailableChargers != nil {
		t.AvailableChargers = *s.AvailableChargers
	}
	if s.TotalChargers != nil {
		t.TotalChargers = *s.TotalChargers
	} else if t.AvailableChargers > t.TotalChargers {
		t.TotalChargers = t.AvailableChargers
	}
	if s.FaultRate != nil {
		t.FaultRate = *s.FaultRate
	}
	if s.AvailablePower != nil {
		t.AvailablePower = *s.AvailablePower
	}
	if s.MaxCapacity != nil {
		t.MaxCapacity = *s.MaxCapacity
	}
	if s.Timestamp != nil && *s.Timestamp > 0 {
		t.Timestamp = *s.Timestamp
	}
	return t
}

// HealthSubmission is the wire schema for POST /ingest/health.
type HealthSubmission struct {
	StationID   string   `json:"stationId" validate:"required"`
	Status      string   `json:"status" validate:"required,oneof=operational degraded offline maintenance"`
	HealthScore *float64 `json:"healthScore,omitempty" validate:"omitempty,min=0,max=100"`
	Issues      []string `json:"issues,omitempty"`
	Timestamp   *int64   `json:"timestamp,omitempty"`
}

func (s HealthSubmission) health() types.StationHealth {
	h := types.StationHealth{
		StationID:   s.StationID,
		Status:      types.HealthStatus(s.Status),
		HealthScore: 100,
		Issues:      s.Issues,
		Timestamp:   now(),
	}
	if s.HealthScore != nil {
		h.HealthScore = *s.HealthScore
	}
	if s.Timestamp != nil && *s.Timestamp > 0 {
		h.Timestamp = *s.Timestamp
	}
	return h
}

// GridSubmission is the wire schema for POST /ingest/grid.
type GridSubmission struct {
	GridID            string   `json:"gridId" validate:"required"`
	Region            string   `json:"region,omitempty"`
	LoadFactor        *float64 `json:"loadFactor,omitempty" validate:"omitempty,min=0,max=1"`
	AvailableCapacity *float64 `json:"availableCapacity,omitempty" validate:"omitempty,min=0"`
	StabilityIndex    *float64 `json:"stabilityIndex,omitempty" validate:"omitempty,min=0,max=1"`
	Timestamp         *int64   `json:"timestamp,omitempty"`
}

func (s GridSubmission) gridStatus() types.GridStatus {
	g := types.GridStatus{
		GridID:         s.GridID,
		Region:         s.Region,
		StabilityIndex: 1,
		Timestamp:      now(),
	}
	if s.LoadFactor != nil {
		g.LoadFactor = *s.LoadFactor
	}
	if s.AvailableCapacity != nil {
		g.AvailableCapacity = *s.AvailableCapacity
	}
	if s.StabilityIndex != nil {
		g.StabilityIndex = *s.StabilityIndex
	}
	if s.Timestamp != nil && *s.Timestamp > 0 {
		g.Timestamp = *s.Timestamp
	}
	return g
}

// ContextSubmission is the wire schema for POST /ingest/user-context.
type ContextSubmission struct {
	UserID       string          `json:"userId" validate:"required"`
	SessionID    string          `json:"sessionId,omitempty"`
	Location     *types.GeoPoint `json:"location,omitempty"`
	Destination  *types.GeoPoint `json:"destination,omitempty"`
	VehicleType  string          `json:"vehicleType,omitempty"`
	BatteryLevel *float64        `json:"batteryLevel,omitempty" validate:"omitempty,min=0,max=100"`
	Timestamp    *int64          `json:"timestamp,omitempty"`
}

func (s ContextSubmission) userContext() types.UserContext {
	uc := types.UserContext{
		UserID:       s.UserID,
		SessionID:    s.SessionID,
		Location:     s.Location,
		Destination:  s.Destination,
		VehicleType:  s.VehicleType,
		BatteryLevel: s.BatteryLevel,
		Timestamp:    now(),
	}
	if s.Timestamp != nil && *s.Timestamp > 0 {
		uc.Timestamp = *s.Timestamp
	}
	return uc
}
