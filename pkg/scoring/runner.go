package scoring

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// PredictionSource provides the model signals consulted during scoring.
// Implementations return an error (or a fallback-marked value) when the
// model is unavailable; scoring treats both as "no signal".
type PredictionSource interface {
	LoadForecast(ctx context.Context, stationID string) (types.LoadForecast, error)
	FaultPrediction(ctx context.Context, stationID string) (types.FaultPrediction, error)
	QueueSurge(ctx context.Context, stationID string) (types.QueueSurgeForecast, error)
	WaitSurge(ctx context.Context, stationID string) (types.WaitSurgeForecast, error)
	RecommenderSignal(ctx context.Context, stationID string) (types.RecommenderSignal, error)
	MaintenanceAction(ctx context.Context, stationID string) (types.MaintenanceAction, error)
}

// Runner consumes station.features and emits station.scores. The score and
// the ranking entry are written with the same value so readers never observe
// them diverging.
type Runner struct {
	calc        *Calculator
	store       statestore.Store
	producer    *bus.Producer
	predictions PredictionSource
	logger      zerolog.Logger
}

// NewRunner wires the scoring stage. predictions may be nil, in which case
// no model penalties are applied.
func NewRunner(calc *Calculator, store statestore.Store, producer *bus.Producer, predictions PredictionSource) *Runner {
	return &Runner{
		calc:        calc,
		store:       store,
		producer:    producer,
		predictions: predictions,
		logger:      log.WithComponent("scorer"),
	}
}

// Handle processes one features message. Prediction failures degrade to an
// unadjusted score; a score is always produced when the features parse.
func (r *Runner) Handle(ctx context.Context, msg bus.Message) bus.Outcome {
	timer := metrics.NewTimer()

	var f types.StationFeatures
	if err := json.Unmarshal(msg.Value, &f); err != nil {
		r.logger.Warn().Err(err).Str("key", msg.Key).Msg("dropping undecodable features")
		return bus.OutcomeSkipped
	}
	if f.StationID == "" {
		r.logger.Warn().Str("key", msg.Key).Msg("dropping features without stationId")
		return bus.OutcomeSkipped
	}

	base, components := r.calc.Score(f.Normalized)
	adjusted := Adjust(base, r.collectSignals(ctx, f.StationID))

	now := time.Now().Unix()
	score := types.StationScore{
		StationID:  f.StationID,
		Overall:    adjusted,
		Components: components,
		Confidence: Confidence(f.Timestamp, now, hasAllNormalizedFields(msg.Value)),
		Timestamp:  now,
	}

	if err := r.store.PutScore(ctx, score); err != nil {
		r.logger.Error().Err(err).Str("station_id", score.StationID).Msg("score store write failed")
		return bus.OutcomeRetryable
	}
	if err := r.store.UpdateRanking(ctx, score.StationID, score.Overall); err != nil {
		r.logger.Error().Err(err).Str("station_id", score.StationID).Msg("ranking update failed")
		return bus.OutcomeRetryable
	}
	if err := r.producer.Publish(ctx, bus.TopicStationScores, score.StationID, score); err != nil {
		r.logger.Error().Err(err).Str("station_id", score.StationID).Msg("score publish failed")
		return bus.OutcomeRetryable
	}

	metrics.ScoresComputed.Inc()
	timer.ObserveDurationVec(metrics.StageLatency, "scoring")

	r.logger.Debug().
		Str("station_id", score.StationID).
		Float64("overall", score.Overall).
		Float64("confidence", score.Confidence).
		Msg("station scored")
	return bus.OutcomeOK
}

// collectSignals fetches the model outputs in parallel, best-effort. Each
// goroutine writes a distinct field. Fallback-marked values are dropped so a
// synthetic zero never penalizes a station.
func (r *Runner) collectSignals(ctx context.Context, stationID string) Signals {
	if r.predictions == nil {
		return Signals{}
	}

	var s Signals
	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		if v, err := r.predictions.LoadForecast(ctx, stationID); err == nil && !v.Fallback {
			s.Load = &v
		}
	}()
	go func() {
		defer wg.Done()
		if v, err := r.predictions.FaultPrediction(ctx, stationID); err == nil && !v.Fallback {
			s.Fault = &v
		}
	}()
	go func() {
		defer wg.Done()
		if v, err := r.predictions.QueueSurge(ctx, stationID); err == nil && !v.Fallback {
			s.Queue = &v
		}
	}()
	go func() {
		defer wg.Done()
		if v, err := r.predictions.WaitSurge(ctx, stationID); err == nil && !v.Fallback {
			s.Wait = &v
		}
	}()
	go func() {
		defer wg.Done()
		if v, err := r.predictions.RecommenderSignal(ctx, stationID); err == nil && !v.Fallback {
			s.Recommender = &v
		}
	}()
	go func() {
		defer wg.Done()
		if v, err := r.predictions.MaintenanceAction(ctx, stationID); err == nil && !v.Fallback {
			s.Action = &v
		}
	}()
	wg.Wait()
	return s
}

// hasAllNormalizedFields reports whether the raw payload carried every
// normalized feature. Decoding into the struct cannot distinguish an absent
// field from a legitimate zero, so the raw JSON is probed.
func hasAllNormalizedFields(raw []byte) bool {
	var probe struct {
		Normalized map[string]json.RawMessage `json:"normalizedFeatures"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Normalized == nil {
		return false
	}
	for _, field := range []string{"waitTime", "availability", "reliability", "distance", "energyStability"} {
		if _, ok := probe.Normalized[field]; !ok {
			return false
		}
	}
	return true
}
