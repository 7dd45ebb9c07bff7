package bus

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

// ConsumerConfig configures one consumer-group member for one topic.
type ConsumerConfig struct {
	Topic      string
	Group      string
	Name       string
	Partitions int
	Workers    int
	Block      time.Duration
	Visibility time.Duration
}

// Consumer reads one topic within a consumer group. Partitions are split
// among workers so that each partition has exactly one in-flight message,
// preserving per-key ordering. Unacknowledged messages are reclaimed after
// the visibility timeout, giving at-least-once delivery.
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	logger zerolog.Logger
}

// NewConsumer creates a consumer. Zero config fields get safe defaults.
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 30 * time.Second
	}
	return &Consumer{
		client: client,
		cfg:    cfg,
		logger: log.WithComponent("bus-consumer").With().Str("topic", cfg.Topic).Logger(),
	}
}

// Run consumes until ctx is cancelled. It creates the consumer group on
// every partition stream, starts the workers and the reclaim loop, and
// returns once all of them have drained their in-flight message.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if err := c.ensureGroups(ctx); err != nil {
		return err
	}

	assignments := make([][]int, c.workerCount())
	for part := 0; part < c.cfg.Partitions; part++ {
		w := part % len(assignments)
		assignments[w] = append(assignments[w], part)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, parts := range assignments {
		parts := parts
		g.Go(func() error {
			c.consumeLoop(ctx, parts, handler)
			return nil
		})
	}
	g.Go(func() error {
		c.reclaimLoop(ctx, handler)
		return nil
	})

	err := g.Wait()
	c.logger.Info().Msg("consumer drained")
	return err
}

func (c *Consumer) workerCount() int {
	if c.cfg.Workers > c.cfg.Partitions {
		return c.cfg.Partitions
	}
	return c.cfg.Workers
}

func (c *Consumer) ensureGroups(ctx context.Context) error {
	for part := 0; part < c.cfg.Partitions; part++ {
		stream := streamName(c.cfg.Topic, part)
		err := c.client.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}
	return nil
}

// consumeLoop reads the worker's assigned partitions until cancellation.
func (c *Consumer) consumeLoop(ctx context.Context, parts []int, handler Handler) {
	streams := make([]string, 0, 2*len(parts))
	partByStream := make(map[string]int, len(parts))
	for _, p := range parts {
		name := streamName(c.cfg.Topic, p)
		streams = append(streams, name)
		partByStream[name] = p
	}
	for range parts {
		streams = append(streams, ">")
	}

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Streams:  streams,
			Count:    16,
			Block:    c.cfg.Block,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().Err(err).Msg("fetch failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, sr := range res {
			part := partByStream[sr.Stream]
			for _, entry := range sr.Messages {
				c.process(ctx, sr.Stream, part, entry, handler)
			}
		}
	}
}

// reclaimLoop periodically claims messages whose consumer died before
// acknowledging, making delivery at-least-once across group members.
func (c *Consumer) reclaimLoop(ctx context.Context, handler Handler) {
	ticker := time.NewTicker(c.cfg.Visibility / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for part := 0; part < c.cfg.Partitions; part++ {
			stream := streamName(c.cfg.Topic, part)
			entries, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   stream,
				Group:    c.cfg.Group,
				Consumer: c.cfg.Name,
				MinIdle:  c.cfg.Visibility,
				Start:    "0-0",
				Count:    16,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			for _, entry := range entries {
				c.process(ctx, stream, part, entry, handler)
			}
		}
	}
}

// process decodes one entry, runs the handler, and acknowledges on OK or
// Skipped. Retryable leaves the entry pending for the reclaim loop.
func (c *Consumer) process(ctx context.Context, stream string, part int, entry redis.XMessage, handler Handler) {
	msg, err := c.decode(part, entry)
	if err != nil {
		// Undecodable transport framing: ack and drop, it can never succeed.
		c.logger.Warn().Str("id", entry.ID).Err(err).Msg("dropping undecodable entry")
		metrics.MessagesConsumed.WithLabelValues(c.cfg.Topic, "skipped").Inc()
		c.ack(ctx, stream, entry.ID)
		return
	}

	outcome := handler(ctx, msg)
	metrics.MessagesConsumed.WithLabelValues(c.cfg.Topic, outcome.String()).Inc()

	switch outcome {
	case OutcomeOK, OutcomeSkipped:
		c.ack(ctx, stream, entry.ID)
	case OutcomeRetryable:
		c.logger.Debug().Str("id", entry.ID).Msg("left pending for redelivery")
	}
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(ctx, stream, c.cfg.Group, id).Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn().Str("id", id).Err(err).Msg("ack failed")
	}
}

func (c *Consumer) decode(part int, entry redis.XMessage) (Message, error) {
	key, _ := entry.Values["key"].(string)
	rawValue, _ := entry.Values["value"].(string)
	encoding, _ := entry.Values["encoding"].(string)

	value, err := decodeValue([]byte(rawValue), encoding)
	if err != nil {
		return Message{}, err
	}

	var ts time.Time
	if raw, ok := entry.Values["ts"].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	}

	return Message{
		Topic:     c.cfg.Topic,
		Key:       key,
		Value:     value,
		Timestamp: ts,
		ID:        entry.ID,
		Partition: part,
	}, nil
}
