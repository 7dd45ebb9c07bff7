package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/repository"
	"github.com/voltgrid/voltgrid/pkg/types"
)

const recordTimeout = 5 * time.Second

// Recorder subscribes to the broker and persists warning- and error-class
// events to system_events. Info-class events stay on the bus for live
// subscribers only.
type Recorder struct {
	broker *Broker
	repo   *repository.SystemEventRepository
	logger zerolog.Logger

	sub  Subscriber
	done chan struct{}
}

// NewRecorder creates a recorder over the given broker and repository.
func NewRecorder(broker *Broker, repo *repository.SystemEventRepository) *Recorder {
	return &Recorder{
		broker: broker,
		repo:   repo,
		logger: log.WithComponent("event-recorder"),
		done:   make(chan struct{}),
	}
}

// Start subscribes and begins persisting events.
func (r *Recorder) Start() {
	r.sub = r.broker.Subscribe()
	go r.run()
}

// Stop unsubscribes and waits for the drain of already-delivered events.
func (r *Recorder) Stop() {
	r.broker.Unsubscribe(r.sub)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.sub {
		severity := SeverityFor(event.Type)
		if severity == types.SeverityInfo {
			continue
		}
		r.persist(event, severity)
	}
}

// persist is best-effort: a failed insert is logged, never propagated. Losing
// an event record must not disturb the pipeline that emitted it.
func (r *Recorder) persist(event Event, severity types.EventSeverity) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	detail := make(repository.Metadata, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		detail[k] = v
	}
	detail["event_type"] = string(event.Type)

	if err := r.repo.Record(ctx, severity, event.Component, event.Message, detail); err != nil {
		r.logger.Warn().Err(err).
			Str("event_type", string(event.Type)).
			Msg("event record failed")
	}
}

// SeverityFor maps an event type onto the persisted severity class.
func SeverityFor(t EventType) types.EventSeverity {
	switch t {
	case EventRecommendationFailed:
		return types.SeverityError
	case EventBreakerOpened, EventStationDegraded:
		return types.SeverityWarning
	default:
		return types.SeverityInfo
	}
}
