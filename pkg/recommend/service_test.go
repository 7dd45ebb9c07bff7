package recommend

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/narrate"
	"github.com/voltgrid/voltgrid/pkg/repository"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

type rankerStub struct {
	rows  []types.RankedStation
	total int
	err   error
}

func (r *rankerStub) Rank(_ context.Context, _ types.RecommendationRequest) ([]types.RankedStation, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	out := append([]types.RankedStation(nil), r.rows...)
	return out, r.total, nil
}

type auxStub struct {
	predictions map[string]*types.OperationalPredictions
	calls       int
	region      string
	ids         []string
}

func (a *auxStub) FetchAll(_ context.Context, region string, ids []string) map[string]*types.OperationalPredictions {
	a.calls++
	a.region = region
	a.ids = ids
	return a.predictions
}

type narratorStub struct {
	text  string
	calls int
	last  narrate.ExplanationContext
}

func (n *narratorStub) Explain(_ context.Context, ec narrate.ExplanationContext) string {
	n.calls++
	n.last = ec
	return n.text
}

type requestLogStub struct {
	mu          sync.Mutex
	created     []string
	completed   []string
	failed      map[string]string
	createErr   error
	completeErr error
}

func (l *requestLogStub) CreatePending(_ context.Context, requestID string, _ *types.RecommendationRequest) error {
	if l.createErr != nil {
		return l.createErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, requestID)
	return nil
}

func (l *requestLogStub) MarkCompleted(_ context.Context, requestID string, _ *types.Recommendation, _ int64) error {
	if l.completeErr != nil {
		return l.completeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, requestID)
	return nil
}

func (l *requestLogStub) MarkFailed(_ context.Context, requestID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed == nil {
		l.failed = map[string]string{}
	}
	l.failed[requestID] = reason
	return nil
}

type recLogStub struct {
	mu          sync.Mutex
	requestID   string
	stations    []string
	meta        repository.Metadata
	selections  map[string]string
	ratings     map[string]int
	createErr   error
	feedbackErr error
}

func (l *recLogStub) Create(_ context.Context, requestID, _ string, stationIDs []string, meta repository.Metadata) error {
	if l.createErr != nil {
		return l.createErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requestID = requestID
	l.stations = stationIDs
	l.meta = meta
	return nil
}

func (l *recLogStub) RecordSelection(_ context.Context, requestID, stationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selections == nil {
		l.selections = map[string]string{}
	}
	l.selections[requestID] = stationID
	return nil
}

func (l *recLogStub) RecordFeedback(_ context.Context, requestID string, rating int) error {
	if l.feedbackErr != nil {
		return l.feedbackErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ratings == nil {
		l.ratings = map[string]int{}
	}
	l.ratings[requestID] = rating
	return nil
}

type testDeps struct {
	mr       *miniredis.Miniredis
	store    statestore.Store
	ranker   *rankerStub
	aux      *auxStub
	narrator *narratorStub
	requests *requestLogStub
	recLogs  *recLogStub
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default()
	cfg.StateStore.Addr = mr.Addr()
	cfg.Bus.Brokers = mr.Addr()
	cfg.Bus.Partitions = 1
	store := statestore.NewWithClient(client, cfg.StateStore)
	producer := bus.NewProducer(client, cfg.Bus)

	d := &testDeps{
		mr:    mr,
		store: store,
		ranker: &rankerStub{
			rows: []types.RankedStation{
				{StationID: "ST_101", Name: "Mission Bay", Region: "bay", Rank: 1, Score: 0.82, BaseScore: 0.85},
				{StationID: "ST_102", Name: "Dogpatch", Region: "bay", Rank: 2, Score: 0.74, BaseScore: 0.74},
			},
			total: 6,
		},
		aux:      &auxStub{predictions: map[string]*types.OperationalPredictions{}},
		narrator: &narratorStub{text: "Mission Bay has the shortest wait nearby."},
		requests: &requestLogStub{},
		recLogs:  &recLogStub{},
	}
	svc := NewService(d.ranker, d.aux, d.narrator, store, d.requests, d.recLogs, producer, nil)
	return svc, d
}

func validRequest() types.RecommendationRequest {
	return types.RecommendationRequest{
		UserID:   "user_1",
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	}
}

func TestRecommendHappyPath(t *testing.T) {
	svc, d := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Recommend(ctx, validRequest())
	require.NoError(t, err)

	require.NotEmpty(t, rec.RequestID)
	assert.Equal(t, "user_1", rec.UserID)
	require.Len(t, rec.Stations, 2)
	assert.Equal(t, "ST_101", rec.Stations[0].StationID)
	assert.Equal(t, 6, rec.TotalCandidates)
	assert.Equal(t, d.narrator.text, rec.Explanation)
	assert.Equal(t, rec.GeneratedAt+int64(types.RecommendationTTL.Seconds()), rec.ExpiresAt)

	// The narrator sees the winner and the runner-up.
	assert.Equal(t, 1, d.narrator.calls)
	assert.Equal(t, "ST_101", d.narrator.last.Top.StationID)
	require.Len(t, d.narrator.last.Alternatives, 1)
	assert.Equal(t, "ST_102", d.narrator.last.Alternatives[0].StationID)

	// Auxiliary models are fanned out once for the ranked set.
	assert.Equal(t, 1, d.aux.calls)
	assert.Equal(t, "bay", d.aux.region)
	assert.Equal(t, []string{"ST_101", "ST_102"}, d.aux.ids)

	// Lifecycle rows and the served log.
	assert.Equal(t, []string{rec.RequestID}, d.requests.created)
	assert.Equal(t, []string{rec.RequestID}, d.requests.completed)
	assert.Equal(t, rec.RequestID, d.recLogs.requestID)
	assert.Equal(t, []string{"ST_101", "ST_102"}, d.recLogs.stations)
	assert.Equal(t, 6, d.recLogs.meta["totalCandidates"])

	// Cached for follow-up lookups and published for downstream consumers.
	cached, err := svc.Lookup(ctx, rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, rec.RequestID, cached.RequestID)
	assert.True(t, d.mr.Exists("bus:recommendations:0"))
}

func TestRecommendRejectsInvalidRequest(t *testing.T) {
	svc, d := newTestService(t)

	_, err := svc.Recommend(context.Background(), types.RecommendationRequest{
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	assert.Empty(t, d.requests.created, "invalid requests never reach the request log")
}

func TestRecommendEmptyRankingUsesFallbackExplanation(t *testing.T) {
	svc, d := newTestService(t)
	d.ranker.rows = nil
	d.ranker.total = 0

	rec, err := svc.Recommend(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Empty(t, rec.Stations)
	assert.Zero(t, rec.TotalCandidates)
	assert.Contains(t, rec.Explanation, "No stations")
	assert.Zero(t, d.narrator.calls, "nothing to narrate without a winner")
	assert.Len(t, d.requests.completed, 1, "an empty result is still a completed request")
}

func TestRecommendRankerFailureIsSanitized(t *testing.T) {
	svc, d := newTestService(t)
	d.ranker.err = errs.E(errs.KindDependencyUnavailable, "state store read: connection refused on 10.0.0.7")

	_, err := svc.Recommend(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, errs.KindDependencyUnavailable, errs.KindOf(err))
	assert.Equal(t, "a backing service is unavailable", err.Error(),
		"callers never see internal addresses")

	require.Len(t, d.requests.created, 1)
	reason, ok := d.requests.failed[d.requests.created[0]]
	require.True(t, ok, "the request row is marked failed")
	assert.Contains(t, reason, "connection refused", "the row keeps the real cause")
}

func TestRecommendCreatePendingFailure(t *testing.T) {
	svc, d := newTestService(t)
	d.requests.createErr = errs.E(errs.KindDependencyUnavailable, "database connect: no route to host")

	_, err := svc.Recommend(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, errs.KindDependencyUnavailable, errs.KindOf(err))
	assert.Equal(t, "a backing service is unavailable", err.Error())
}

func TestRecommendPersistFailuresAreNonFatal(t *testing.T) {
	svc, d := newTestService(t)
	d.requests.completeErr = errs.E(errs.KindDependencyUnavailable, "database write failed")
	d.recLogs.createErr = errs.E(errs.KindDependencyUnavailable, "database write failed")

	rec, err := svc.Recommend(context.Background(), validRequest())
	require.NoError(t, err, "log writes are best effort once the result exists")
	assert.Len(t, rec.Stations, 2)

	cached, err := svc.Lookup(context.Background(), rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, rec.RequestID, cached.RequestID)
}

func TestRecommendAttachesOperationalPredictions(t *testing.T) {
	svc, d := newTestService(t)
	d.aux.predictions = map[string]*types.OperationalPredictions{
		"ST_101": {}, // every model absent, must not decorate
		"ST_102": {Traffic: &types.TrafficForecast{Region: "bay", CongestionLevel: 0.4}},
	}

	rec, err := svc.Recommend(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, rec.Stations, 2)

	assert.Nil(t, rec.Stations[0].Operational)
	require.NotNil(t, rec.Stations[1].Operational)
	assert.InDelta(t, 0.4, rec.Stations[1].Operational.Traffic.CongestionLevel, 1e-9)
}

func TestLookupMissIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Lookup(context.Background(), "req_missing")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRecordSelection(t *testing.T) {
	svc, d := newTestService(t)
	ctx := context.Background()

	err := svc.RecordSelection(ctx, "req_1", "")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
	assert.Equal(t, "is required", errs.FieldsOf(err)["stationId"])

	require.NoError(t, svc.RecordSelection(ctx, "req_1", "ST_101"))
	assert.Equal(t, "ST_101", d.recLogs.selections["req_1"])
}

func TestRecordFeedback(t *testing.T) {
	svc, d := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordFeedback(ctx, "req_1", 4))
	assert.Equal(t, 4, d.recLogs.ratings["req_1"])

	// Range enforcement lives in the repository; its error passes through.
	d.recLogs.feedbackErr = errs.Invalid("validation failed", map[string]string{"rating": "must be between 1 and 5"})
	err := svc.RecordFeedback(ctx, "req_1", 9)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}
