/*
Package events provides an in-memory event broker for VoltGrid's pub/sub
messaging, plus a Recorder that persists noteworthy events.

The broker broadcasts pipeline events (breaker trips, fallbacks, served and
failed recommendations) to interested subscribers with buffered, non-blocking
delivery. It is intentionally fire-and-forget: critical data flows through the
message bus and the database, never through this broker.

# Architecture

	Publisher → Event Channel (buffer: 100)
	     ↓
	Broadcast Loop
	     ↓
	Subscriber Channels (buffer: 50 each, full buffers skip)

Subscribers:

  - Recorder: persists warning/error events to system_events
  - Metrics collectors and future streaming surfaces

# Event Types

	telemetry.accepted      ingestion accepted a telemetry submission
	features.computed       feature stage produced a record
	score.updated           scoring stage updated the ranking
	breaker.opened          a model circuit breaker tripped        (warning)
	breaker.closed          a model circuit breaker recovered
	model.fallback          a prediction was served from fallback
	narration.fallback      the LLM explanation fell back to the template
	recommendation.served   a recommendation was returned
	recommendation.failed   a recommendation request failed         (error)
	station.degraded        a station reported degraded health      (warning)

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	recorder := events.NewRecorder(broker, repos.Events)
	recorder.Start()
	defer recorder.Stop()

	broker.Publish(events.Event{
		Type:      events.EventBreakerOpened,
		Component: "predict",
		Message:   "fault model breaker opened",
		Metadata:  map[string]string{"model": "fault"},
	})

# Delivery Semantics

Publish never blocks: the main channel is buffered and a full subscriber
buffer skips that subscriber. The Recorder classifies events through
SeverityFor and writes only warning and error classes; persistence failures
are logged and dropped. Events are not replayed.
*/
package events
