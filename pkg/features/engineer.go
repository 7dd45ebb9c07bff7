package features

import (
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// Engineer derives per-station features from raw telemetry. Pure computation;
// all I/O lives in the Runner.
type Engineer struct {
	cfg config.FeaturesConfig
}

// NewEngineer creates an engineer with the given normalization ranges.
func NewEngineer(cfg config.FeaturesConfig) *Engineer {
	return &Engineer{cfg: cfg}
}

// Compute turns one telemetry observation into a StationFeatures record.
// All exposed numbers are rounded to 4 decimal places.
func (e *Engineer) Compute(t types.StationTelemetry) (types.StationFeatures, error) {
	if t.StationID == "" {
		return types.StationFeatures{}, errs.E(errs.KindInvalidInput, "telemetry missing stationId")
	}
	if t.Timestamp == 0 {
		return types.StationFeatures{}, errs.E(errs.KindInvalidInput, "telemetry missing timestamp")
	}

	waitTime := float64(t.QueueLength) * t.AvgServiceTime
	reliability := types.Clamp01(1 - t.FaultRate)

	energy := 0.0
	if t.MaxCapacity > 0 {
		energy = types.Clamp01(t.AvailablePower / t.MaxCapacity)
	}

	availability := 0.0
	if t.TotalChargers > 0 {
		availability = types.Clamp01(float64(t.AvailableChargers) / float64(t.TotalChargers))
	}

	// Per-user distance is a query-time concern; at ingest time the penalty
	// is a nominal ETA stretched by the traffic factor.
	distancePenalty := e.cfg.NominalETAMinutes * e.cfg.TrafficFactor

	return types.StationFeatures{
		StationID:                t.StationID,
		EffectiveWaitTime:        types.Round4(waitTime),
		StationReliabilityScore:  types.Round4(reliability),
		EnergyStabilityIndex:     types.Round4(energy),
		ChargerAvailabilityRatio: types.Round4(availability),
		DistancePenalty:          types.Round4(distancePenalty),
		Normalized: types.NormalizedFeatures{
			WaitTime:        types.Round4(normalizeInverse(waitTime, e.cfg.WaitTimeMin, e.cfg.WaitTimeMax)),
			Availability:    types.Round4(availability),
			Reliability:     types.Round4(reliability),
			Distance:        types.Round4(normalizeInverse(distancePenalty, e.cfg.DistanceMin, e.cfg.DistanceMax)),
			EnergyStability: types.Round4(energy),
		},
		Timestamp: t.Timestamp,
	}, nil
}

// normalize maps v from [min,max] onto [0,1], clamping outside the range.
// A degenerate range (min >= max) maps everything to 0.5.
func normalize(v, min, max float64) float64 {
	if min >= max {
		return 0.5
	}
	return types.Clamp01((v - min) / (max - min))
}

// normalizeInverse orients normalization so lower raw values score higher.
// Used for wait time and distance.
func normalizeInverse(v, min, max float64) float64 {
	if min >= max {
		return 0.5
	}
	return 1 - normalize(v, min, max)
}
