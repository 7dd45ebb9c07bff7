package bus

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/log"
)

// Topic names. Partition keys are the natural entity key of each topic:
// stationId for station.* topics, gridId for grid.status, userId for
// user.context, requestId for recommendations.
const (
	TopicStationTelemetry   = "station.telemetry"
	TopicStationHealth      = "station.health"
	TopicGridStatus         = "grid.status"
	TopicUserContext        = "user.context"
	TopicStationFeatures    = "station.features"
	TopicStationScores      = "station.scores"
	TopicStationPredictions = "station.predictions"
	TopicRecommendations    = "recommendations"
)

// compressThreshold is the payload size above which values are gzipped.
const compressThreshold = 1024

// Message is one bus record as seen by a consumer.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp time.Time
	ID        string
	Partition int
}

// Outcome is the per-message result of a handler. Only OK and Skipped
// acknowledge the message; Retryable leaves it pending for redelivery.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeSkipped
	OutcomeRetryable
)

// String returns the metrics label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// Handler processes one message. It must not panic across the boundary;
// parse failures are OutcomeSkipped, transient failures OutcomeRetryable.
type Handler func(ctx context.Context, msg Message) Outcome

// partition maps a key onto one of n partition streams with FNV-1a, so all
// messages for one key land in one stream and keep their order.
func partition(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// streamName is the backing stream for one (topic, partition) pair.
func streamName(topic string, part int) string {
	return fmt.Sprintf("bus:%s:%d", topic, part)
}

// Connect dials the bus with retry and backoff. The startup budget is
// cfg.ConnectAttempts pings; each failed attempt backs off a little longer,
// capped at five seconds.
func Connect(ctx context.Context, cfg config.BusConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Brokers})
	logger := log.WithComponent("bus")

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			logger.Info().Str("brokers", cfg.Brokers).Int("attempt", i).Msg("connected")
			return client, nil
		}
		if i == attempts {
			break
		}

		backoff := time.Duration(i) * 500 * time.Millisecond
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errs.Wrap(errs.KindDependencyUnavailable, ctx.Err(), "bus connect cancelled")
		case <-time.After(backoff):
		}
	}

	_ = client.Close()
	return nil, errs.Wrap(errs.KindDependencyUnavailable, lastErr,
		fmt.Sprintf("bus unreachable after %d attempts", attempts))
}

// encodeValue compresses large payloads. Returns the wire bytes and the
// content-encoding field value.
func encodeValue(value []byte) ([]byte, string, error) {
	if len(value) <= compressThreshold {
		return value, "", nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return nil, "", fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), "gzip", nil
}

// decodeValue reverses encodeValue.
func decodeValue(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return payload, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip payload: %w", err)
		}
		defer func() { _ = zr.Close() }()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown content encoding %q", encoding)
	}
}
