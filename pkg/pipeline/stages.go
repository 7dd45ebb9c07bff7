package pipeline

import (
	"context"
	"encoding/json"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// contextMirror copies user.context messages into the state store so the
// recommendation path can read trip context without consuming the topic.
func contextMirror(store statestore.Store) bus.Handler {
	logger := log.WithComponent("context-mirror")

	return func(ctx context.Context, msg bus.Message) bus.Outcome {
		timer := metrics.NewTimer()

		var uc types.UserContext
		if err := json.Unmarshal(msg.Value, &uc); err != nil {
			logger.Warn().Err(err).Str("key", msg.Key).Msg("dropping undecodable user context")
			return bus.OutcomeSkipped
		}
		if uc.UserID == "" {
			logger.Warn().Str("key", msg.Key).Msg("dropping user context without userId")
			return bus.OutcomeSkipped
		}

		if err := store.PutUserContext(ctx, uc); err != nil {
			logger.Error().Err(err).Str("user_id", uc.UserID).Msg("context mirror write failed")
			return bus.OutcomeRetryable
		}

		timer.ObserveDurationVec(metrics.StageLatency, "context")
		return bus.OutcomeOK
	}
}

// historySampler forwards telemetry to the repository's sampling insert.
// Database outages leave messages pending rather than losing the sample.
func historySampler(sampler TelemetrySampler) bus.Handler {
	logger := log.WithComponent("history-sampler")

	return func(ctx context.Context, msg bus.Message) bus.Outcome {
		var t types.StationTelemetry
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			logger.Warn().Err(err).Str("key", msg.Key).Msg("dropping undecodable telemetry")
			return bus.OutcomeSkipped
		}
		if t.StationID == "" {
			return bus.OutcomeSkipped
		}

		written, err := sampler.SampleTelemetry(ctx, &t)
		if err != nil {
			logger.Error().Err(err).Str("station_id", t.StationID).Msg("history insert failed")
			return bus.OutcomeRetryable
		}
		if written {
			logger.Debug().Str("station_id", t.StationID).Msg("history sample written")
		}
		return bus.OutcomeOK
	}
}
