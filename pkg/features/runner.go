package features

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// Runner consumes station.telemetry and emits station.features. One instance
// serves all workers of the stage; Handle is safe for concurrent use.
type Runner struct {
	engineer *Engineer
	store    statestore.Store
	producer *bus.Producer
	logger   zerolog.Logger
}

// NewRunner wires the feature stage.
func NewRunner(engineer *Engineer, store statestore.Store, producer *bus.Producer) *Runner {
	return &Runner{
		engineer: engineer,
		store:    store,
		producer: producer,
		logger:   log.WithComponent("feature-engineer"),
	}
}

// Handle processes one telemetry message. Malformed payloads are skipped so
// the stream keeps moving; store or publish failures are retryable and the
// message is redelivered.
func (r *Runner) Handle(ctx context.Context, msg bus.Message) bus.Outcome {
	timer := metrics.NewTimer()

	var t types.StationTelemetry
	if err := json.Unmarshal(msg.Value, &t); err != nil {
		r.logger.Warn().Err(err).Str("key", msg.Key).Msg("dropping undecodable telemetry")
		return bus.OutcomeSkipped
	}

	f, err := r.engineer.Compute(t)
	if err != nil {
		r.logger.Warn().Err(err).Str("station_id", t.StationID).Msg("dropping invalid telemetry")
		return bus.OutcomeSkipped
	}

	if err := r.store.PutFeatures(ctx, f); err != nil {
		r.logger.Error().Err(err).Str("station_id", f.StationID).Msg("feature store write failed")
		return bus.OutcomeRetryable
	}
	if err := r.producer.Publish(ctx, bus.TopicStationFeatures, f.StationID, f); err != nil {
		r.logger.Error().Err(err).Str("station_id", f.StationID).Msg("feature publish failed")
		return bus.OutcomeRetryable
	}

	metrics.FeaturesComputed.Inc()
	timer.ObserveDurationVec(metrics.StageLatency, "features")

	r.logger.Debug().
		Str("station_id", f.StationID).
		Float64("effective_wait_time", f.EffectiveWaitTime).
		Float64("availability_ratio", f.ChargerAvailabilityRatio).
		Msg("features computed")
	return bus.OutcomeOK
}
