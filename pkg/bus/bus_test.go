package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/types"
)

func newTestBus(t *testing.T) (*redis.Client, *miniredis.Miniredis, config.BusConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Default().Bus
	cfg.Brokers = mr.Addr()
	cfg.Partitions = 4
	return client, mr, cfg
}

func TestPartitionIsStable(t *testing.T) {
	for _, key := range []string{"ST_101", "ST_102", "u1", "grid-7"} {
		first := partition(key, 8)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, partition(key, 8), "partition for %q must not vary", key)
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 8)
	}
}

func TestEncodeValueSmallPayloadUncompressed(t *testing.T) {
	payload, encoding, err := encodeValue([]byte(`{"stationId":"ST_101"}`))
	require.NoError(t, err)
	assert.Empty(t, encoding)
	assert.Equal(t, `{"stationId":"ST_101"}`, string(payload))
}

func TestEncodeValueLargePayloadGzipped(t *testing.T) {
	big := bytes.Repeat([]byte("telemetry "), 500)
	payload, encoding, err := encodeValue(big)
	require.NoError(t, err)
	assert.Equal(t, "gzip", encoding)
	assert.Less(t, len(payload), len(big))

	round, err := decodeValue(payload, encoding)
	require.NoError(t, err)
	assert.Equal(t, big, round)
}

func TestDecodeValueUnknownEncoding(t *testing.T) {
	_, err := decodeValue([]byte("x"), "zstd")
	assert.Error(t, err)
}

func TestPublishWritesPartitionStream(t *testing.T) {
	client, mr, cfg := newTestBus(t)
	producer := NewProducer(client, cfg)

	telemetry := types.StationTelemetry{StationID: "ST_101", QueueLength: 2, Timestamp: time.Now().Unix()}
	require.NoError(t, producer.Publish(context.Background(), TopicStationTelemetry, "ST_101", telemetry))

	part := partition("ST_101", cfg.Partitions)
	stream := streamName(TopicStationTelemetry, part)
	assert.True(t, mr.Exists(stream), "expected entries in %s", stream)
}

func TestConsumeRoundTrip(t *testing.T) {
	client, _, cfg := newTestBus(t)
	producer := NewProducer(client, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []types.StationTelemetry

	consumer := NewConsumer(client, ConsumerConfig{
		Topic:      TopicStationTelemetry,
		Group:      "features-test",
		Name:       "worker-1",
		Partitions: cfg.Partitions,
		Workers:    2,
		Block:      50 * time.Millisecond,
		Visibility: time.Second,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, msg Message) Outcome {
			var telemetry types.StationTelemetry
			if err := json.Unmarshal(msg.Value, &telemetry); err != nil {
				return OutcomeSkipped
			}
			mu.Lock()
			got = append(got, telemetry)
			mu.Unlock()
			return OutcomeOK
		})
	}()

	want := []types.StationTelemetry{
		{StationID: "ST_101", QueueLength: 2, Timestamp: 1700000001},
		{StationID: "ST_102", QueueLength: 5, Timestamp: 1700000002},
		{StationID: "ST_103", QueueLength: 0, Timestamp: 1700000003},
	}
	for _, telemetry := range want {
		require.NoError(t, producer.Publish(ctx, TopicStationTelemetry, telemetry.StationID, telemetry))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	byID := map[string]types.StationTelemetry{}
	for _, telemetry := range got {
		byID[telemetry.StationID] = telemetry
	}
	for _, telemetry := range want {
		assert.Equal(t, telemetry, byID[telemetry.StationID])
	}
}

func TestPerKeyOrderingWithinPartition(t *testing.T) {
	client, _, cfg := newTestBus(t)
	producer := NewProducer(client, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []int64

	consumer := NewConsumer(client, ConsumerConfig{
		Topic:      TopicStationTelemetry,
		Group:      "order-test",
		Name:       "worker-1",
		Partitions: cfg.Partitions,
		Workers:    4,
		Block:      50 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, msg Message) Outcome {
			var telemetry types.StationTelemetry
			if err := json.Unmarshal(msg.Value, &telemetry); err != nil {
				return OutcomeSkipped
			}
			if telemetry.StationID == "ST_101" {
				mu.Lock()
				seen = append(seen, telemetry.Timestamp)
				mu.Unlock()
			}
			return OutcomeOK
		})
	}()

	for i := int64(1); i <= 20; i++ {
		require.NoError(t, producer.Publish(ctx, TopicStationTelemetry, "ST_101",
			types.StationTelemetry{StationID: "ST_101", Timestamp: i}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 20
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "messages for one key must arrive in publish order")
	}
}

func TestRetryableIsRedelivered(t *testing.T) {
	client, mr, cfg := newTestBus(t)
	cfg.Partitions = 1
	producer := NewProducer(client, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32

	consumer := NewConsumer(client, ConsumerConfig{
		Topic:      TopicStationFeatures,
		Group:      "retry-test",
		Name:       "worker-1",
		Partitions: 1,
		Workers:    1,
		Block:      50 * time.Millisecond,
		Visibility: 200 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, _ Message) Outcome {
			if attempts.Add(1) == 1 {
				return OutcomeRetryable
			}
			return OutcomeOK
		})
	}()

	require.NoError(t, producer.Publish(ctx, TopicStationFeatures, "ST_101",
		types.StationFeatures{StationID: "ST_101"}))

	// The reclaim loop measures idle time on the server clock.
	require.Eventually(t, func() bool {
		mr.FastForward(250 * time.Millisecond)
		return attempts.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestSkippedIsAcknowledged(t *testing.T) {
	client, _, cfg := newTestBus(t)
	cfg.Partitions = 1
	producer := NewProducer(client, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32

	consumer := NewConsumer(client, ConsumerConfig{
		Topic:      TopicStationTelemetry,
		Group:      "skip-test",
		Name:       "worker-1",
		Partitions: 1,
		Workers:    1,
		Block:      50 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, _ Message) Outcome {
			handled.Add(1)
			return OutcomeSkipped
		})
	}()

	require.NoError(t, producer.PublishRaw(ctx, TopicStationTelemetry, "ST_101", []byte("{malformed")))

	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	// Acked: nothing pending for the group.
	stream := streamName(TopicStationTelemetry, 0)
	pending, err := client.XPending(context.Background(), stream, "skip-test").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConnectRetriesThenFails(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Brokers = "127.0.0.1:1" // nothing listens here
	cfg.ConnectAttempts = 2

	start := time.Now()
	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "after 2 attempts"))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond, "should back off between attempts")
}

func TestConnectSucceeds(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default().Bus
	cfg.Brokers = mr.Addr()
	cfg.ConnectAttempts = 3

	client, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
