package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/log"
)

// EventType identifies what happened.
type EventType string

const (
	EventTelemetryAccepted    EventType = "telemetry.accepted"
	EventFeaturesComputed     EventType = "features.computed"
	EventScoreUpdated         EventType = "score.updated"
	EventBreakerOpened        EventType = "breaker.opened"
	EventBreakerClosed        EventType = "breaker.closed"
	EventModelFallback        EventType = "model.fallback"
	EventNarrationFallback    EventType = "narration.fallback"
	EventRecommendationServed EventType = "recommendation.served"
	EventRecommendationFailed EventType = "recommendation.failed"
	EventStationDegraded      EventType = "station.degraded"
)

// Event is a record of something the pipeline did or suffered.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Component string
	Message   string
	Metadata  map[string]string
}

const (
	feedBuffer = 100
	subBuffer  = 50
)

// Subscriber receives broker events. The channel is closed on
// Unsubscribe.
type Subscriber chan Event

// Broker fans pipeline events out to in-process subscribers. Delivery
// is best effort: a subscriber that stops draining loses events rather
// than stalling publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	feed   chan Event
	quit   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// NewBroker creates a broker. Delivery begins after Start.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[Subscriber]struct{}),
		feed:   make(chan Event, feedBuffer),
		quit:   make(chan struct{}),
		logger: log.WithComponent("events"),
	}
}

// Start launches the fan-out loop.
func (b *Broker) Start() {
	go b.fanout()
}

// Stop halts delivery. Events still queued in the feed are dropped.
func (b *Broker) Stop() {
	b.once.Do(func() { close(b.quit) })
}

// Subscribe attaches a new subscriber.
func (b *Broker) Subscribe() Subscriber {
	sub := make(Subscriber, subBuffer)
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe detaches the subscriber and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub)
	}
	b.mu.Unlock()
}

// Publish hands the event to the fan-out loop, stamping the timestamp
// when unset. It never blocks: with the feed saturated or the broker
// stopped the event is dropped.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.feed <- event:
	case <-b.quit:
	default:
		b.logger.Debug().Str("event_type", string(event.Type)).Msg("event feed full, dropping")
	}
}

func (b *Broker) fanout() {
	for {
		select {
		case event := <-b.feed:
			b.mu.RLock()
			for sub := range b.subs {
				select {
				case sub <- event:
				default:
					// Slow subscriber, drop rather than stall the loop.
				}
			}
			b.mu.RUnlock()
		case <-b.quit:
			return
		}
	}
}

// SubscriberCount reports the number of attached subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
