package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

// maxStreamLen bounds each partition stream; old entries are trimmed.
const maxStreamLen = 100_000

// Producer publishes messages onto topic partition streams. One Producer is
// shared per process.
type Producer struct {
	client     *redis.Client
	partitions int
	clientID   string
	logger     zerolog.Logger
}

// NewProducer creates a producer over an established client.
func NewProducer(client *redis.Client, cfg config.BusConfig) *Producer {
	return &Producer{
		client:     client,
		partitions: cfg.Partitions,
		clientID:   cfg.ClientID,
		logger:     log.WithComponent("bus-producer"),
	}
}

// Publish JSON-encodes v and appends it to the partition stream selected by
// key. The entry carries a millisecond timestamp header and, for large
// payloads, a gzip content encoding.
func (p *Producer) Publish(ctx context.Context, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}
	return p.PublishRaw(ctx, topic, key, value)
}

// PublishRaw appends a pre-encoded JSON payload.
func (p *Producer) PublishRaw(ctx context.Context, topic, key string, value []byte) error {
	payload, encoding, err := encodeValue(value)
	if err != nil {
		return err
	}

	part := partition(key, p.partitions)
	stream := streamName(topic, part)

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"key":      key,
			"value":    payload,
			"encoding": encoding,
			"ts":       strconv.FormatInt(time.Now().UnixMilli(), 10),
			"producer": p.clientID,
		},
	}).Err()
	if err != nil {
		metrics.BusPublishErrors.WithLabelValues(topic).Inc()
		return errs.Wrap(errs.KindDependencyUnavailable, err, "bus publish")
	}

	metrics.BusPublished.WithLabelValues(topic).Inc()
	p.logger.Debug().Str("topic", topic).Str("key", key).Int("partition", part).Msg("published")
	return nil
}

// Ping verifies the bus connection.
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "bus ping")
	}
	return nil
}

// Close closes the underlying client.
func (p *Producer) Close() error {
	return p.client.Close()
}
