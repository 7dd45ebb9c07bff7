package types

import (
	"math"
	"time"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// StationTelemetry is one raw periodic observation of a station.
// Timestamps are integer seconds; AvgServiceTime is minutes per vehicle.
type StationTelemetry struct {
	StationID         string  `json:"stationId"`
	QueueLength       int     `json:"queueLength"`
	AvgServiceTime    float64 `json:"avgServiceTime"`
	AvailableChargers int     `json:"availableChargers"`
	TotalChargers     int     `json:"totalChargers"`
	FaultRate         float64 `json:"faultRate"`
	AvailablePower    float64 `json:"availablePower"`
	MaxCapacity       float64 `json:"maxCapacity"`
	Timestamp         int64   `json:"timestamp"`
}

// NormalizedFeatures holds the [0,1] projections of the raw features,
// oriented so that higher is always better.
type NormalizedFeatures struct {
	WaitTime        float64 `json:"waitTime"`
	Availability    float64 `json:"availability"`
	Reliability     float64 `json:"reliability"`
	Distance        float64 `json:"distance"`
	EnergyStability float64 `json:"energyStability"`
}

// StationFeatures is the engineered per-station signal produced from telemetry.
type StationFeatures struct {
	StationID                string             `json:"stationId"`
	EffectiveWaitTime        float64            `json:"effectiveWaitTime"`
	StationReliabilityScore  float64            `json:"stationReliabilityScore"`
	EnergyStabilityIndex     float64            `json:"energyStabilityIndex"`
	ChargerAvailabilityRatio float64            `json:"chargerAvailabilityRatio"`
	DistancePenalty          float64            `json:"distancePenalty"`
	Normalized               NormalizedFeatures `json:"normalizedFeatures"`
	Timestamp                int64              `json:"timestamp"`
}

// ComponentScores is the per-dimension breakdown behind an overall score.
type ComponentScores struct {
	Wait            float64 `json:"wait"`
	Availability    float64 `json:"availability"`
	Reliability     float64 `json:"reliability"`
	Distance        float64 `json:"distance"`
	EnergyStability float64 `json:"energyStability"`
}

// StationScore is the scalar utility of a station with its breakdown.
// Rank is assigned at query time by the optimizer; the cached copy carries zero.
type StationScore struct {
	StationID  string          `json:"stationId"`
	Overall    float64         `json:"overallScore"`
	Components ComponentScores `json:"componentScores"`
	Confidence float64         `json:"confidence"`
	Timestamp  int64           `json:"timestamp"`
	Rank       int             `json:"rank,omitempty"`
}

// HealthStatus is the operational state reported for a station.
type HealthStatus string

const (
	HealthOperational HealthStatus = "operational"
	HealthDegraded    HealthStatus = "degraded"
	HealthOffline     HealthStatus = "offline"
	HealthMaintenance HealthStatus = "maintenance"
)

// Selectable reports whether a station in this state may be recommended.
func (s HealthStatus) Selectable() bool {
	return s == HealthOperational || s == HealthDegraded
}

// StationHealth is an operator-reported health observation.
// HealthScore is 0..100.
type StationHealth struct {
	StationID   string       `json:"stationId"`
	Status      HealthStatus `json:"status"`
	HealthScore float64      `json:"healthScore"`
	Issues      []string     `json:"issues,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

// GridStatus is a regional power-grid observation.
type GridStatus struct {
	GridID            string  `json:"gridId"`
	Region            string  `json:"region,omitempty"`
	LoadFactor        float64 `json:"loadFactor"`
	AvailableCapacity float64 `json:"availableCapacity"`
	StabilityIndex    float64 `json:"stabilityIndex"`
	Timestamp         int64   `json:"timestamp"`
}

// UserContext is trip context submitted ahead of a recommendation query.
type UserContext struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId,omitempty"`
	Location     *GeoPoint `json:"location,omitempty"`
	Destination  *GeoPoint `json:"destination,omitempty"`
	VehicleType  string    `json:"vehicleType,omitempty"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// ChargerType enumerates charger hardware classes a user can ask for.
type ChargerType string

const (
	ChargerFast     ChargerType = "fast"
	ChargerStandard ChargerType = "standard"
	ChargerAny      ChargerType = "any"
)

// RiskLevel buckets a fault probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor derives the bucket for a fault probability.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p > 0.7:
		return RiskHigh
	case p > 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Station is the master registry record for a charging/swap station.
type Station struct {
	ID            string        `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Address       string        `json:"address" db:"address"`
	Latitude      float64       `json:"latitude" db:"latitude"`
	Longitude     float64       `json:"longitude" db:"longitude"`
	TotalChargers int           `json:"totalChargers" db:"total_chargers"`
	ChargerTypes  ChargerTypes  `json:"chargerTypes" db:"charger_types"`
	MaxCapacity   float64       `json:"maxCapacity" db:"max_capacity"`
	Region        string        `json:"region" db:"region"`
	GridID        string        `json:"gridId" db:"grid_id"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// Location returns the station coordinates as a GeoPoint.
func (s *Station) Location() GeoPoint {
	return GeoPoint{Latitude: s.Latitude, Longitude: s.Longitude}
}

// HasChargerType reports whether the station carries the requested class.
// ChargerAny and the empty string match every station.
func (s *Station) HasChargerType(t ChargerType) bool {
	if t == "" || t == ChargerAny {
		return true
	}
	for _, ct := range s.ChargerTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// RecommendationRequest is a user query for the best stations.
// Optional constraints are pointers so absence is distinguishable from zero.
type RecommendationRequest struct {
	UserID               string      `json:"userId" validate:"required"`
	Location             GeoPoint    `json:"location"`
	VehicleType          string      `json:"vehicleType,omitempty"`
	BatteryLevel         *float64    `json:"batteryLevel,omitempty" validate:"omitempty,min=0,max=100"`
	PreferredChargerType ChargerType `json:"preferredChargerType,omitempty" validate:"omitempty,oneof=fast standard any"`
	MaxWaitTime          *float64    `json:"maxWaitTime,omitempty" validate:"omitempty,gt=0"`
	MaxDistance          *float64    `json:"maxDistance,omitempty" validate:"omitempty,gt=0"`
	PreferNearby         bool        `json:"preferNearby,omitempty"`
	PreferReliable       bool        `json:"preferReliable,omitempty"`
	Limit                int         `json:"limit,omitempty" validate:"omitempty,min=1,max=20"`
}

// Result list sizing.
const (
	DefaultLimit = 5
	MaxLimit     = 20
)

// EffectiveLimit returns the request limit with the default applied.
func (r *RecommendationRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	return r.Limit
}

// RankedStation is one row of a recommendation result.
type RankedStation struct {
	StationID         string                  `json:"stationId"`
	Name              string                  `json:"name"`
	Address           string                  `json:"address,omitempty"`
	Region            string                  `json:"region,omitempty"`
	Rank              int                     `json:"rank"`
	Score             float64                 `json:"score"`
	BaseScore         float64                 `json:"baseScore"`
	EstimatedWaitTime float64                 `json:"estimatedWaitTime"`
	EstimatedDistance float64                 `json:"estimatedDistance"`
	AvailableChargers int                     `json:"availableChargers"`
	ChargerTypes      ChargerTypes            `json:"chargerTypes,omitempty"`
	Features          *StationFeatures        `json:"features,omitempty"`
	Load              *LoadForecast           `json:"loadForecast,omitempty"`
	Fault             *FaultPrediction        `json:"faultPrediction,omitempty"`
	Operational       *OperationalPredictions `json:"operational,omitempty"`
}

// Recommendation is the assembled response for one request.
type Recommendation struct {
	RequestID       string          `json:"requestId"`
	UserID          string          `json:"userId"`
	Stations        []RankedStation `json:"stations"`
	Explanation     string          `json:"explanation"`
	TotalCandidates int             `json:"totalCandidates"`
	GeneratedAt     int64           `json:"generatedAt"`
	ExpiresAt       int64           `json:"expiresAt"`
}

// RecommendationTTL is how long an assembled response stays addressable.
const RecommendationTTL = 5 * time.Minute

// RequestStatus tracks the lifecycle of a logged user request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// EventSeverity classifies a recorded system event.
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeverityWarning EventSeverity = "warning"
	SeverityError   EventSeverity = "error"
)

// Round4 rounds to 4 decimal places, the precision of every exposed number.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
