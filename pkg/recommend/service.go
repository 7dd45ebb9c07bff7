package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/narrate"
	"github.com/voltgrid/voltgrid/pkg/optimize"
	"github.com/voltgrid/voltgrid/pkg/repository"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
	"github.com/voltgrid/voltgrid/pkg/validate"
)

// emptyResultExplanation is served when every candidate was gated out.
const emptyResultExplanation = "No stations can serve your request right now. " +
	"Widening the distance or wait limits may help."

// Ranker selects stations for a request.
type Ranker interface {
	Rank(ctx context.Context, req types.RecommendationRequest) ([]types.RankedStation, int, error)
}

// AuxPredictor fans out the operational model set for ranked stations.
type AuxPredictor interface {
	FetchAll(ctx context.Context, region string, stationIDs []string) map[string]*types.OperationalPredictions
}

// RequestLog persists the request lifecycle rows.
type RequestLog interface {
	CreatePending(ctx context.Context, requestID string, req *types.RecommendationRequest) error
	MarkCompleted(ctx context.Context, requestID string, rec *types.Recommendation, processingMs int64) error
	MarkFailed(ctx context.Context, requestID, reason string) error
}

// RecommendationLog persists served results and user reactions to them.
type RecommendationLog interface {
	Create(ctx context.Context, requestID, userID string, stationIDs []string, meta repository.Metadata) error
	RecordSelection(ctx context.Context, requestID, stationID string) error
	RecordFeedback(ctx context.Context, requestID string, rating int) error
}

// Service orchestrates one recommendation request end to end: validate,
// rank, enrich with operational predictions, narrate, persist, cache.
type Service struct {
	ranker   Ranker
	aux      AuxPredictor
	narrator narrate.Narrator
	store    statestore.Store
	requests RequestLog
	recLogs  RecommendationLog
	producer *bus.Producer
	broker   *events.Broker
	logger   zerolog.Logger
}

// NewService wires the request path. producer and broker are optional.
func NewService(ranker Ranker, aux AuxPredictor, narrator narrate.Narrator,
	store statestore.Store, requests RequestLog, recLogs RecommendationLog,
	producer *bus.Producer, broker *events.Broker) *Service {

	return &Service{
		ranker:   ranker,
		aux:      aux,
		narrator: narrator,
		store:    store,
		requests: requests,
		recLogs:  recLogs,
		producer: producer,
		broker:   broker,
		logger:   log.WithComponent("recommend"),
	}
}

// Recommend serves one query. Validation failures surface as InvalidInput;
// anything that breaks after the request row exists marks it failed and
// surfaces a sanitized error.
func (s *Service) Recommend(ctx context.Context, req types.RecommendationRequest) (types.Recommendation, error) {
	timer := metrics.NewTimer()

	if err := validate.Struct(req); err != nil {
		metrics.RecommendationsTotal.WithLabelValues("invalid").Inc()
		return types.Recommendation{}, err
	}

	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Str("user_id", req.UserID).Logger()

	if err := s.requests.CreatePending(ctx, requestID, &req); err != nil {
		metrics.RecommendationsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("request row create failed")
		return types.Recommendation{}, sanitize(err)
	}

	rec, total, err := s.assemble(ctx, requestID, req)
	if err != nil {
		s.fail(ctx, requestID, logger, err)
		return types.Recommendation{}, sanitize(err)
	}

	elapsed := timer.Duration()
	if err := s.requests.MarkCompleted(ctx, requestID, &rec, elapsed.Milliseconds()); err != nil {
		logger.Warn().Err(err).Msg("request row completion update failed")
	}
	if err := s.recLogs.Create(ctx, requestID, req.UserID, stationIDs(rec.Stations), repository.Metadata{
		"totalCandidates": total,
		"stationCount":    len(rec.Stations),
		"processingMs":    elapsed.Milliseconds(),
	}); err != nil {
		logger.Warn().Err(err).Msg("recommendation log write failed")
	}
	if err := s.store.PutRecommendation(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("recommendation cache write failed")
	}
	if s.producer != nil {
		if err := s.producer.Publish(ctx, bus.TopicRecommendations, req.UserID, rec); err != nil {
			logger.Warn().Err(err).Msg("recommendation publish failed")
		}
	}
	if s.broker != nil {
		s.broker.Publish(events.Event{
			Type:      events.EventRecommendationServed,
			Component: "recommend",
			Message:   "recommendation served",
			Metadata: map[string]string{
				"request_id": requestID,
				"user_id":    req.UserID,
			},
		})
	}

	metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	timer.ObserveDuration(metrics.RecommendationLatency)
	logger.Info().
		Int("stations", len(rec.Stations)).
		Int("candidates", total).
		Dur("elapsed", elapsed).
		Msg("recommendation served")
	return rec, nil
}

// assemble produces the response body: rank, attach operational predictions,
// apply preferences, narrate.
func (s *Service) assemble(ctx context.Context, requestID string, req types.RecommendationRequest) (types.Recommendation, int, error) {
	rows, total, err := s.ranker.Rank(ctx, req)
	if err != nil {
		return types.Recommendation{}, 0, err
	}

	s.attachOperational(ctx, rows)
	rows = optimize.ApplyPreferences(req, rows)

	explanation := emptyResultExplanation
	if len(rows) > 0 {
		ec := narrate.ExplanationContext{
			Request:         req,
			Top:             rows[0],
			TotalCandidates: total,
		}
		if len(rows) > 1 {
			end := min(len(rows), 3)
			ec.Alternatives = rows[1:end]
		}
		explanation = s.narrator.Explain(ctx, ec)
	}

	now := time.Now()
	return types.Recommendation{
		RequestID:       requestID,
		UserID:          req.UserID,
		Stations:        rows,
		Explanation:     explanation,
		TotalCandidates: total,
		GeneratedAt:     now.Unix(),
		ExpiresAt:       now.Add(types.RecommendationTTL).Unix(),
	}, total, nil
}

// attachOperational decorates rows with whatever the auxiliary models have;
// absences degrade silently.
func (s *Service) attachOperational(ctx context.Context, rows []types.RankedStation) {
	if s.aux == nil || len(rows) == 0 {
		return
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].StationID
	}
	predictions := s.aux.FetchAll(ctx, rows[0].Region, ids)
	for i := range rows {
		if p, ok := predictions[rows[i].StationID]; ok && !p.Empty() {
			rows[i].Operational = p
		}
	}
}

func (s *Service) fail(ctx context.Context, requestID string, logger zerolog.Logger, cause error) {
	metrics.RecommendationsTotal.WithLabelValues("failed").Inc()
	logger.Error().Err(cause).Msg("recommendation failed")

	// The row update must survive request cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := s.requests.MarkFailed(ctx, requestID, cause.Error()); err != nil {
		logger.Warn().Err(err).Msg("request row failure update failed")
	}
	if s.broker != nil {
		s.broker.Publish(events.Event{
			Type:      events.EventRecommendationFailed,
			Component: "recommend",
			Message:   "recommendation failed",
			Metadata:  map[string]string{"request_id": requestID},
		})
	}
}

// sanitize keeps the error kind for transport mapping but strips internal
// detail from what the caller sees.
func sanitize(err error) error {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		return err
	case errs.KindDependencyUnavailable:
		return errs.E(errs.KindDependencyUnavailable, "a backing service is unavailable")
	default:
		return errs.E(errs.KindInternalFailure, "recommendation could not be produced")
	}
}

// Lookup returns a previously served recommendation while its cache entry
// lives; afterwards it is NotFound.
func (s *Service) Lookup(ctx context.Context, requestID string) (types.Recommendation, error) {
	return s.store.GetRecommendation(ctx, requestID)
}

// RecordSelection notes which station the user picked.
func (s *Service) RecordSelection(ctx context.Context, requestID, stationID string) error {
	if stationID == "" {
		return errs.Invalid("validation failed", map[string]string{"stationId": "is required"})
	}
	return s.recLogs.RecordSelection(ctx, requestID, stationID)
}

// RecordFeedback stores a 1..5 rating for a served recommendation.
func (s *Service) RecordFeedback(ctx context.Context, requestID string, rating int) error {
	return s.recLogs.RecordFeedback(ctx, requestID, rating)
}

func stationIDs(rows []types.RankedStation) []string {
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].StationID
	}
	return ids
}
