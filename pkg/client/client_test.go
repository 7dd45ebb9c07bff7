package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/api"
	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/ingest"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

type stubRecommender struct {
	rec       types.Recommendation
	err       error
	lookupErr error
	selected  string
	rating    int
}

func (s *stubRecommender) Recommend(_ context.Context, req types.RecommendationRequest) (types.Recommendation, error) {
	if s.err != nil {
		return types.Recommendation{}, s.err
	}
	rec := s.rec
	rec.UserID = req.UserID
	return rec, nil
}

func (s *stubRecommender) Lookup(_ context.Context, requestID string) (types.Recommendation, error) {
	if s.lookupErr != nil {
		return types.Recommendation{}, s.lookupErr
	}
	rec := s.rec
	rec.RequestID = requestID
	return rec, nil
}

func (s *stubRecommender) RecordSelection(_ context.Context, _, stationID string) error {
	s.selected = stationID
	return nil
}

func (s *stubRecommender) RecordFeedback(_ context.Context, _ string, rating int) error {
	if rating < 1 || rating > 5 {
		return errs.Invalid("validation failed", map[string]string{"rating": "must be between 1 and 5"})
	}
	s.rating = rating
	return nil
}

func newTestClient(t *testing.T) (*Client, *stubRecommender, statestore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.Default()
	cfg.StateStore.Addr = mr.Addr()
	cfg.Bus.Brokers = mr.Addr()
	cfg.Bus.Partitions = 1
	store := statestore.NewWithClient(rdb, cfg.StateStore)
	producer := bus.NewProducer(rdb, cfg.Bus)

	recs := &stubRecommender{
		rec: types.Recommendation{
			RequestID: "req_1",
			Stations: []types.RankedStation{
				{StationID: "ST_101", Name: "Mission Bay", Rank: 1, Score: 0.82},
			},
			Explanation:     "Mission Bay has the shortest wait nearby.",
			TotalCandidates: 4,
		},
	}
	server := api.NewServer(cfg.API, ingest.NewService(store, producer, nil), recs, store)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL), recs, store
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestSubmitTelemetry(t *testing.T) {
	cli, _, store := newTestClient(t)
	ctx := context.Background()

	ack, err := cli.SubmitTelemetry(ctx, ingest.TelemetrySubmission{
		StationID:         "ST_101",
		AvailableChargers: intPtr(4),
		TotalChargers:     intPtr(6),
		QueueLength:       intPtr(2),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ack.ID)
	assert.Equal(t, bus.TopicStationTelemetry, ack.Topic)

	stored, err := store.GetTelemetry(ctx, "ST_101")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.AvailableChargers)
}

func TestSubmitTelemetryValidationError(t *testing.T) {
	cli, _, _ := newTestClient(t)

	_, err := cli.SubmitTelemetry(context.Background(), ingest.TelemetrySubmission{
		StationID: "ST_101",
		FaultRate: floatPtr(1.3),
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	assert.Equal(t, "must be at most 1", errs.FieldsOf(err)["faultRate"],
		"field messages survive the wire")
}

func TestSubmitHealthAndGridAndContext(t *testing.T) {
	cli, _, _ := newTestClient(t)
	ctx := context.Background()

	ack, err := cli.SubmitHealth(ctx, ingest.HealthSubmission{StationID: "ST_101", Status: "operational"})
	require.NoError(t, err)
	assert.Equal(t, bus.TopicStationHealth, ack.Topic)

	ack, err = cli.SubmitGridStatus(ctx, ingest.GridSubmission{GridID: "GRID_1", LoadFactor: floatPtr(0.5)})
	require.NoError(t, err)
	assert.Equal(t, bus.TopicGridStatus, ack.Topic)

	ack, err = cli.SubmitUserContext(ctx, ingest.ContextSubmission{UserID: "user_1", BatteryLevel: floatPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, bus.TopicUserContext, ack.Topic)
}

func TestRecommend(t *testing.T) {
	cli, _, _ := newTestClient(t)

	rec, err := cli.Recommend(context.Background(), types.RecommendationRequest{
		UserID:   "user_1",
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	})
	require.NoError(t, err)
	assert.Equal(t, "user_1", rec.UserID)
	require.Len(t, rec.Stations, 1)
	assert.Equal(t, "ST_101", rec.Stations[0].StationID)
	assert.Equal(t, 4, rec.TotalCandidates)
}

func TestRecommendServiceErrorKeepsKind(t *testing.T) {
	cli, recs, _ := newTestClient(t)
	recs.err = errs.E(errs.KindDependencyUnavailable, "a backing service is unavailable")

	_, err := cli.Recommend(context.Background(), types.RecommendationRequest{
		UserID:   "user_1",
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindDependencyUnavailable, errs.KindOf(err))
}

func TestLookupNotFound(t *testing.T) {
	cli, recs, _ := newTestClient(t)
	recs.lookupErr = errs.NotFound("recommendation", "req_gone")

	_, err := cli.Lookup(context.Background(), "req_gone")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestSelectAndFeedback(t *testing.T) {
	cli, recs, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, cli.Select(ctx, "req_1", "ST_101"))
	assert.Equal(t, "ST_101", recs.selected)

	require.NoError(t, cli.Feedback(ctx, "req_1", 5))
	assert.Equal(t, 5, recs.rating)

	err := cli.Feedback(ctx, "req_1", 9)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	assert.Contains(t, errs.FieldsOf(err)["rating"], "between 1 and 5")
}

func TestStationLookups(t *testing.T) {
	cli, _, store := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, store.PutScore(ctx, types.StationScore{StationID: "ST_101", Overall: 0.8123}))
	score, err := cli.StationScore(ctx, "ST_101")
	require.NoError(t, err)
	assert.InDelta(t, 0.8123, score.Overall, 1e-9)

	_, err = cli.StationScore(ctx, "ST_404")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	require.NoError(t, store.PutHealth(ctx, types.StationHealth{
		StationID: "ST_101", Status: types.HealthOperational, HealthScore: 95,
	}))
	health, err := cli.StationHealth(ctx, "ST_101")
	require.NoError(t, err)
	assert.Equal(t, types.HealthOperational, health.Status)

	require.NoError(t, store.PutFeatures(ctx, types.StationFeatures{
		StationID: "ST_101", EffectiveWaitTime: 12.5,
	}))
	features, err := cli.StationFeatures(ctx, "ST_101")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, features.EffectiveWaitTime, 1e-9)
}

func TestProbes(t *testing.T) {
	cli, _, _ := newTestClient(t)
	ctx := context.Background()

	// No component in trouble means healthy; readiness additionally needs
	// every critical dependency reporting in.
	require.NoError(t, cli.Healthy(ctx))

	err := cli.Ready(ctx)
	require.Error(t, err)
	assert.Equal(t, errs.KindDependencyUnavailable, errs.KindOf(err))

	for _, name := range []string{"statestore", "database", "bus"} {
		metrics.UpdateComponent(name, true, "")
	}
	require.NoError(t, cli.Ready(ctx))
}

func TestUnreachableNode(t *testing.T) {
	cli := New("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))

	_, err := cli.Recommend(context.Background(), types.RecommendationRequest{
		UserID:   "user_1",
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindDependencyUnavailable, errs.KindOf(err))
}
