package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
	"github.com/voltgrid/voltgrid/pkg/validate"
)

// Ack acknowledges an accepted submission. Processing is asynchronous; the
// ack only promises the record reached the bus.
type Ack struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Timestamp int64  `json:"timestamp"`
}

// Service validates submissions, publishes them to their topic keyed by the
// natural entity key, and mirrors them into the state store so freshly
// ingested data is readable before the pipeline has consumed it.
type Service struct {
	store    statestore.Store
	producer *bus.Producer
	broker   *events.Broker
	logger   zerolog.Logger
}

// NewService wires the ingestion path. broker is optional.
func NewService(store statestore.Store, producer *bus.Producer, broker *events.Broker) *Service {
	return &Service{
		store:    store,
		producer: producer,
		broker:   broker,
		logger:   log.WithComponent("ingest"),
	}
}

// SubmitTelemetry accepts one station observation. Only stationId is
// required; absent fields take defaults, and cross-field invariants are
// checked after defaulting.
func (s *Service) SubmitTelemetry(ctx context.Context, sub TelemetrySubmission) (Ack, error) {
	if err := validate.Struct(sub); err != nil {
		return Ack{}, err
	}
	t := sub.telemetry()
	if err := checkTelemetryInvariants(t); err != nil {
		return Ack{}, err
	}

	if err := s.producer.Publish(ctx, bus.TopicStationTelemetry, t.StationID, t); err != nil {
		return Ack{}, errs.Wrap(errs.KindDependencyUnavailable, err, "telemetry publish")
	}
	if err := s.store.PutTelemetry(ctx, t); err != nil {
		s.logger.Warn().Err(err).Str("station_id", t.StationID).Msg("telemetry mirror write failed")
	}
	s.accepted(ctx, bus.TopicStationTelemetry, t.StationID)

	return Ack{ID: t.StationID, Topic: bus.TopicStationTelemetry, Timestamp: t.Timestamp}, nil
}

// SubmitHealth accepts an operator health report for one station.
func (s *Service) SubmitHealth(ctx context.Context, sub HealthSubmission) (Ack, error) {
	if err := validate.Struct(sub); err != nil {
		return Ack{}, err
	}
	h := sub.health()

	if err := s.producer.Publish(ctx, bus.TopicStationHealth, h.StationID, h); err != nil {
		return Ack{}, errs.Wrap(errs.KindDependencyUnavailable, err, "health publish")
	}
	if err := s.store.PutHealth(ctx, h); err != nil {
		s.logger.Warn().Err(err).Str("station_id", h.StationID).Msg("health mirror write failed")
	}
	s.accepted(ctx, bus.TopicStationHealth, h.StationID)

	if !h.Status.Selectable() && s.broker != nil {
		s.broker.Publish(events.Event{
			Type:      events.EventStationDegraded,
			Component: "ingest",
			Message:   "station reported " + string(h.Status),
			Metadata:  map[string]string{"station_id": h.StationID, "status": string(h.Status)},
		})
	}

	return Ack{ID: h.StationID, Topic: bus.TopicStationHealth, Timestamp: h.Timestamp}, nil
}

// SubmitGridStatus accepts a power-grid observation.
func (s *Service) SubmitGridStatus(ctx context.Context, sub GridSubmission) (Ack, error) {
	if err := validate.Struct(sub); err != nil {
		return Ack{}, err
	}
	g := sub.gridStatus()

	if err := s.producer.Publish(ctx, bus.TopicGridStatus, g.GridID, g); err != nil {
		return Ack{}, errs.Wrap(errs.KindDependencyUnavailable, err, "grid status publish")
	}
	if err := s.store.PutGridStatus(ctx, g); err != nil {
		s.logger.Warn().Err(err).Str("grid_id", g.GridID).Msg("grid status mirror write failed")
	}
	s.accepted(ctx, bus.TopicGridStatus, g.GridID)

	return Ack{ID: g.GridID, Topic: bus.TopicGridStatus, Timestamp: g.Timestamp}, nil
}

// SubmitUserContext accepts trip context ahead of a recommendation query.
func (s *Service) SubmitUserContext(ctx context.Context, sub ContextSubmission) (Ack, error) {
	if err := validate.Struct(sub); err != nil {
		return Ack{}, err
	}
	uc := sub.userContext()

	if err := s.producer.Publish(ctx, bus.TopicUserContext, uc.UserID, uc); err != nil {
		return Ack{}, errs.Wrap(errs.KindDependencyUnavailable, err, "user context publish")
	}
	if err := s.store.PutUserContext(ctx, uc); err != nil {
		s.logger.Warn().Err(err).Str("user_id", uc.UserID).Msg("user context mirror write failed")
	}
	if uc.SessionID != "" {
		if err := s.store.PutUserSession(ctx, uc.SessionID, uc); err != nil {
			s.logger.Warn().Err(err).Str("session_id", uc.SessionID).Msg("session write failed")
		}
	}
	s.accepted(ctx, bus.TopicUserContext, uc.UserID)

	return Ack{ID: uc.UserID, Topic: bus.TopicUserContext, Timestamp: uc.Timestamp}, nil
}

// accepted bumps the per-topic ingest counter and emits the accepted event.
// Both are best-effort bookkeeping.
func (s *Service) accepted(ctx context.Context, topic, id string) {
	if _, err := s.store.IncrCounter(ctx, "ingest:"+topic); err != nil {
		s.logger.Debug().Err(err).Str("topic", topic).Msg("ingest counter bump failed")
	}
	if s.broker != nil && topic == bus.TopicStationTelemetry {
		s.broker.Publish(events.Event{
			Type:      events.EventTelemetryAccepted,
			Component: "ingest",
			Message:   "telemetry accepted",
			Metadata:  map[string]string{"station_id": id},
		})
	}
}

// checkTelemetryInvariants enforces the cross-field constraints that tag
// validation cannot express.
func checkTelemetryInvariants(t types.StationTelemetry) error {
	fields := map[string]string{}
	if t.AvailableChargers > t.TotalChargers {
		fields["availableChargers"] = "must not exceed totalChargers"
	}
	if t.MaxCapacity > 0 && t.AvailablePower > t.MaxCapacity {
		fields["availablePower"] = "must not exceed maxCapacity"
	}
	if len(fields) > 0 {
		return errs.Invalid("validation failed", fields)
	}
	return nil
}

func now() int64 {
	return time.Now().Unix()
}
