/*
Package bus implements the partitioned message bus on Redis Streams.

Each topic is sharded into a fixed number of partition streams
(bus:{topic}:{partition}); a message's partition is chosen by FNV-1a over its
key, so all messages for one station (or user, or grid) land in one stream
and keep their order. Consumer groups, acknowledgement, and reclaim of stuck
messages map directly onto XREADGROUP, XACK and XAUTOCLAIM.

# Topics

	station.telemetry     raw observations        key = stationId
	station.health        health reports          key = stationId
	grid.status           grid observations       key = gridId
	user.context          trip context            key = userId
	station.features      engineered features     key = stationId
	station.scores        computed scores         key = stationId
	station.predictions   fresh model outputs     key = stationId
	recommendations       served responses        key = requestId

# Delivery Semantics

At-least-once within a consumer group. A handler returns one of three
outcomes per message:

	OutcomeOK        processed; acknowledge
	OutcomeSkipped   permanently unprocessable (malformed payload); acknowledge
	OutcomeRetryable transient failure; leave pending

Pending messages idle longer than the visibility timeout are reclaimed by the
group's reclaim loop and re-handled, which covers both consumer crashes and
Retryable outcomes. Poison messages must be Skipped, not Retryable, or they
will redeliver forever.

Partitions are split among a consumer's workers so each partition has exactly
one in-flight message at a time. Ordering holds per key; across partitions
and across stages nothing is guaranteed, and downstream caches resolve races
by last-writer-wins.

# Wire Format

Entry fields: key, value (UTF-8 JSON), encoding ("" or "gzip" for payloads
above 1 KiB), ts (producer milliseconds), producer (client id). Partition
streams are trimmed to a bounded length on write.

# Usage

	client, err := bus.Connect(ctx, cfg.Bus)
	producer := bus.NewProducer(client, cfg.Bus)
	_ = producer.Publish(ctx, bus.TopicStationTelemetry, t.StationID, t)

	consumer := bus.NewConsumer(client, bus.ConsumerConfig{
	    Topic:      bus.TopicStationTelemetry,
	    Group:      "voltgrid-features",
	    Name:       "features-1",
	    Partitions: cfg.Bus.Partitions,
	    Workers:    4,
	})
	err = consumer.Run(ctx, func(ctx context.Context, msg bus.Message) bus.Outcome {
	    ...
	})

Connect retries with growing backoff for the configured attempt budget
(default 30) before reporting the bus unreachable, which gives the broker
time to come up when the whole stack starts at once.
*/
package bus
