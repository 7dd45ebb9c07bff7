package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

type stubSampler struct {
	calls atomic.Int32
	err   error
}

func (s *stubSampler) SampleTelemetry(ctx context.Context, t *types.StationTelemetry) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.calls.Add(1)
	return true, nil
}

func newTestDeps(t *testing.T) (*config.Config, Deps, statestore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default()
	cfg.StateStore.Addr = mr.Addr()
	cfg.Bus.Partitions = 1
	cfg.Pipeline.FeatureWorkers = 1
	cfg.Pipeline.ScoreWorkers = 1
	cfg.Pipeline.ContextWorkers = 1
	cfg.Pipeline.DrainTimeout = 5 * time.Second

	store := statestore.NewWithClient(client, cfg.StateStore)
	deps := Deps{
		Client:   client,
		Store:    store,
		Producer: bus.NewProducer(client, cfg.Bus),
	}
	return cfg, deps, store, mr
}

func TestSupervisorRunsTelemetryThroughScoring(t *testing.T) {
	cfg, deps, store, _ := newTestDeps(t)
	sampler := &stubSampler{}
	deps.Sampler = sampler

	sup := New(cfg, deps)
	ctx := context.Background()
	sup.Start(ctx)
	t.Cleanup(func() { _ = sup.Stop() })

	telemetry := types.StationTelemetry{
		StationID:         "ST_101",
		QueueLength:       2,
		AvgServiceTime:    5,
		AvailableChargers: 8,
		TotalChargers:     12,
		FaultRate:         0.02,
		AvailablePower:    400,
		MaxCapacity:       500,
		Timestamp:         time.Now().Unix(),
	}
	require.NoError(t, deps.Producer.Publish(ctx, bus.TopicStationTelemetry, telemetry.StationID, telemetry))

	require.Eventually(t, func() bool {
		_, err := store.GetFeatures(ctx, "ST_101")
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "features never materialized")

	require.Eventually(t, func() bool {
		_, err := store.GetScore(ctx, "ST_101")
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "score never materialized")

	score, err := store.GetScore(ctx, "ST_101")
	require.NoError(t, err)
	ranked, err := store.RankingScore(ctx, "ST_101")
	require.NoError(t, err)
	assert.InDelta(t, score.Overall, ranked, 1e-9, "ranking must carry the stored score")

	require.Eventually(t, func() bool {
		return sampler.calls.Load() >= 1
	}, 10*time.Second, 50*time.Millisecond, "history sampler never saw the observation")
}

func TestSupervisorMirrorsUserContext(t *testing.T) {
	cfg, deps, store, _ := newTestDeps(t)

	sup := New(cfg, deps)
	ctx := context.Background()
	sup.Start(ctx)
	t.Cleanup(func() { _ = sup.Stop() })

	uc := types.UserContext{
		UserID:    "u1",
		SessionID: "sess-1",
		Location:  &types.GeoPoint{Latitude: 37.77, Longitude: -122.41},
		Timestamp: time.Now().Unix(),
	}
	require.NoError(t, deps.Producer.Publish(ctx, bus.TopicUserContext, uc.UserID, uc))

	require.Eventually(t, func() bool {
		got, err := store.GetUserContext(ctx, "u1")
		return err == nil && got.SessionID == "sess-1"
	}, 10*time.Second, 50*time.Millisecond)
}

func TestSupervisorStopsWithinBudget(t *testing.T) {
	cfg, deps, _, _ := newTestDeps(t)

	sup := New(cfg, deps)
	sup.Start(context.Background())

	start := time.Now()
	require.NoError(t, sup.Stop())
	assert.Less(t, time.Since(start), cfg.Pipeline.DrainTimeout)
}

func TestStopWithoutStart(t *testing.T) {
	cfg, deps, _, _ := newTestDeps(t)
	sup := New(cfg, deps)
	assert.NoError(t, sup.Stop())
}

func TestContextMirrorOutcomes(t *testing.T) {
	_, _, store, mr := newTestDeps(t)
	handler := contextMirror(store)
	ctx := context.Background()

	out := handler(ctx, bus.Message{Value: []byte("{not json")})
	assert.Equal(t, bus.OutcomeSkipped, out)

	out = handler(ctx, bus.Message{Value: []byte(`{"sessionId":"s"}`)})
	assert.Equal(t, bus.OutcomeSkipped, out, "missing userId is unprocessable")

	out = handler(ctx, bus.Message{Value: []byte(`{"userId":"u9","sessionId":"s9"}`)})
	assert.Equal(t, bus.OutcomeOK, out)
	got, err := store.GetUserContext(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, "s9", got.SessionID)

	mr.SetError("store down")
	defer mr.SetError("")
	out = handler(ctx, bus.Message{Value: []byte(`{"userId":"u10"}`)})
	assert.Equal(t, bus.OutcomeRetryable, out)
}

func TestHistorySamplerOutcomes(t *testing.T) {
	sampler := &stubSampler{}
	handler := historySampler(sampler)
	ctx := context.Background()

	out := handler(ctx, bus.Message{Value: []byte("oops")})
	assert.Equal(t, bus.OutcomeSkipped, out)

	out = handler(ctx, bus.Message{Value: []byte(`{"queueLength":1}`)})
	assert.Equal(t, bus.OutcomeSkipped, out, "missing stationId is unprocessable")

	out = handler(ctx, bus.Message{Value: []byte(`{"stationId":"ST_1"}`)})
	assert.Equal(t, bus.OutcomeOK, out)
	assert.Equal(t, int32(1), sampler.calls.Load())

	sampler.err = errors.New("db down")
	out = handler(ctx, bus.Message{Value: []byte(`{"stationId":"ST_1"}`)})
	assert.Equal(t, bus.OutcomeRetryable, out)
}
