package optimize

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

type fakeDirectory struct {
	stations map[string]types.Station
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*types.Station, error) {
	if s, ok := d.stations[id]; ok {
		return &s, nil
	}
	return nil, errs.NotFound("station", id)
}

func (d *fakeDirectory) FindAll(_ context.Context) ([]types.Station, error) {
	out := make([]types.Station, 0, len(d.stations))
	for _, s := range d.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakePredictions mirrors the gateway contract: absent models yield a
// fallback value with a nil error.
type fakePredictions struct {
	faults map[string]types.FaultPrediction
	loads  map[string]types.LoadForecast
}

func (p *fakePredictions) FaultPrediction(_ context.Context, stationID string) (types.FaultPrediction, error) {
	if p != nil && p.faults != nil {
		if f, ok := p.faults[stationID]; ok {
			return f, nil
		}
	}
	return types.FaultPrediction{StationID: stationID, RiskLevel: types.RiskLow, Fallback: true}, nil
}

func (p *fakePredictions) LoadForecast(_ context.Context, stationID string) (types.LoadForecast, error) {
	if p != nil && p.loads != nil {
		if l, ok := p.loads[stationID]; ok {
			return l, nil
		}
	}
	return types.LoadForecast{StationID: stationID, Fallback: true}, nil
}

func newTestOptimizer(t *testing.T) (*Optimizer, statestore.Store, *fakeDirectory, *fakePredictions) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default()
	cfg.StateStore.Addr = mr.Addr()
	store := statestore.NewWithClient(client, cfg.StateStore)

	dir := &fakeDirectory{stations: map[string]types.Station{}}
	preds := &fakePredictions{faults: map[string]types.FaultPrediction{}, loads: map[string]types.LoadForecast{}}
	return New(store, dir, preds), store, dir, preds
}

var userLocation = types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}

// seedStation registers a station in the directory and, when score > 0, in
// the ranking with serviceable features.
func seedStation(t *testing.T, store statestore.Store, dir *fakeDirectory, id string, lat, lon, score float64) {
	t.Helper()
	dir.stations[id] = types.Station{
		ID:            id,
		Name:          "Station " + id,
		Latitude:      lat,
		Longitude:     lon,
		TotalChargers: 10,
		ChargerTypes:  types.ChargerTypes{types.ChargerStandard},
	}
	if score <= 0 {
		return
	}
	ctx := context.Background()
	require.NoError(t, store.UpdateRanking(ctx, id, score))
	require.NoError(t, store.PutFeatures(ctx, types.StationFeatures{
		StationID:                id,
		EffectiveWaitTime:        10,
		ChargerAvailabilityRatio: 0.6,
		StationReliabilityScore:  0.95,
		Timestamp:                1700000000,
	}))
}

func TestColdStartServesDistanceSortedStubs(t *testing.T) {
	opt, _, dir, _ := newTestOptimizer(t)
	seedStation(t, nil, dir, "ST_101", 37.7749, -122.4194, 0)
	seedStation(t, nil, dir, "ST_102", 37.7849, -122.4094, 0)
	seedStation(t, nil, dir, "ST_103", 37.8049, -122.4394, 0)

	rows, total, err := opt.Rank(context.Background(), types.RecommendationRequest{
		UserID:   "u1",
		Location: userLocation,
		Limit:    3,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 3, total)

	assert.Equal(t, "ST_101", rows[0].StationID)
	assert.Less(t, rows[0].EstimatedDistance, 0.01)
	for i, row := range rows {
		assert.InDelta(t, 0.5, row.Score, 1e-9)
		assert.Equal(t, i+1, row.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, row.EstimatedDistance, rows[i-1].EstimatedDistance)
		}
	}
}

func TestRankHonorsLimitAndOrdering(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("ST_10%d", i)
		lat := 37.7749 + float64(i)*0.001
		seedStation(t, store, dir, id, lat, -122.4194, 0.5+float64(i)*0.05)
	}

	rows, total, err := opt.Rank(context.Background(), types.RecommendationRequest{
		UserID:   "u1",
		Location: userLocation,
		Limit:    3,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 8, total)

	seen := map[string]bool{}
	for i, row := range rows {
		assert.False(t, seen[row.StationID], "duplicate station %s", row.StationID)
		seen[row.StationID] = true
		assert.Equal(t, i+1, row.Rank)
		if i > 0 {
			assert.LessOrEqual(t, row.Score, rows[i-1].Score)
		}
	}
}

func TestFaultGateExcludesRiskyStation(t *testing.T) {
	opt, store, dir, preds := newTestOptimizer(t)
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.80)
	seedStation(t, store, dir, "ST_102", 37.7849, -122.4094, 0.85)
	seedStation(t, store, dir, "ST_103", 37.7799, -122.4144, 0.99)
	preds.faults["ST_103"] = types.FaultPrediction{
		StationID:        "ST_103",
		FaultProbability: 0.5,
		RiskLevel:        types.RiskHigh,
	}

	rows, _, err := opt.Rank(context.Background(), types.RecommendationRequest{
		UserID:   "u1",
		Location: userLocation,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.NotEqual(t, "ST_103", row.StationID)
	}
}

func TestDistanceCapExcludesFarStation(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.7)
	seedStation(t, store, dir, "ST_102", 37.7799, -122.4144, 0.7)
	// ST_105 sits roughly 40 km southeast.
	seedStation(t, store, dir, "ST_105", 37.55, -122.05, 0.9)

	maxDistance := 2.0
	rows, _, err := opt.Rank(context.Background(), types.RecommendationRequest{
		UserID:      "u1",
		Location:    userLocation,
		MaxDistance: &maxDistance,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.NotEqual(t, "ST_105", row.StationID)
		assert.LessOrEqual(t, row.EstimatedDistance, maxDistance)
	}
}

func TestHealthGate(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	ctx := context.Background()
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.8)
	seedStation(t, store, dir, "ST_102", 37.7849, -122.4094, 0.9)
	seedStation(t, store, dir, "ST_103", 37.7799, -122.4144, 0.95)

	require.NoError(t, store.PutHealth(ctx, types.StationHealth{
		StationID: "ST_101", Status: types.HealthDegraded, HealthScore: 80,
	}))
	require.NoError(t, store.PutHealth(ctx, types.StationHealth{
		StationID: "ST_102", Status: types.HealthOffline, HealthScore: 90,
	}))
	require.NoError(t, store.PutHealth(ctx, types.StationHealth{
		StationID: "ST_103", Status: types.HealthOperational, HealthScore: 40,
	}))

	rows, _, err := opt.Rank(ctx, types.RecommendationRequest{UserID: "u1", Location: userLocation})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ST_101", rows[0].StationID, "degraded but scored above the floor stays eligible")
}

func TestFeatureGates(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	ctx := context.Background()
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.8)
	seedStation(t, store, dir, "ST_102", 37.7849, -122.4094, 0.9)
	seedStation(t, store, dir, "ST_103", 37.7799, -122.4144, 0.95)

	// ST_102: nearly no free chargers. ST_103: very long wait.
	require.NoError(t, store.PutFeatures(ctx, types.StationFeatures{
		StationID: "ST_102", EffectiveWaitTime: 10, ChargerAvailabilityRatio: 0.05,
	}))
	require.NoError(t, store.PutFeatures(ctx, types.StationFeatures{
		StationID: "ST_103", EffectiveWaitTime: 45, ChargerAvailabilityRatio: 0.5,
	}))

	maxWait := 15.0
	rows, _, err := opt.Rank(ctx, types.RecommendationRequest{
		UserID:      "u1",
		Location:    userLocation,
		MaxWaitTime: &maxWait,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ST_101", rows[0].StationID)
}

func TestRankedStationMissingFromRegistryIsSkipped(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	ctx := context.Background()
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.8)

	// Ranked and featured, but no master record.
	require.NoError(t, store.UpdateRanking(ctx, "ST_999", 0.99))
	require.NoError(t, store.PutFeatures(ctx, types.StationFeatures{
		StationID: "ST_999", EffectiveWaitTime: 5, ChargerAvailabilityRatio: 0.5,
	}))

	rows, _, err := opt.Rank(ctx, types.RecommendationRequest{UserID: "u1", Location: userLocation})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ST_101", rows[0].StationID)
}

func TestDistanceDecayFavorsNearerOfEqualScores(t *testing.T) {
	opt, store, dir, _ := newTestOptimizer(t)
	seedStation(t, store, dir, "ST_101", 37.7749, -122.4194, 0.8)
	seedStation(t, store, dir, "ST_102", 37.8649, -122.4194, 0.8)

	rows, _, err := opt.Rank(context.Background(), types.RecommendationRequest{UserID: "u1", Location: userLocation})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ST_101", rows[0].StationID)
	assert.InDelta(t, 0.8, rows[0].Score, 1e-9, "zero distance keeps the base score")
	assert.Less(t, rows[1].Score, 0.8)
	assert.Greater(t, rows[1].Score, 0.0)
	assert.InDelta(t, 0.8, rows[1].BaseScore, 1e-9)
}

func TestApplyPreferencesBoosts(t *testing.T) {
	rows := []types.RankedStation{
		{StationID: "ST_101", Score: 0.80, EstimatedDistance: 8, Rank: 1,
			ChargerTypes: types.ChargerTypes{types.ChargerStandard}},
		{StationID: "ST_102", Score: 0.75, EstimatedDistance: 3, Rank: 2,
			ChargerTypes: types.ChargerTypes{types.ChargerFast}},
	}

	t.Run("no preferences leaves order alone", func(t *testing.T) {
		got := ApplyPreferences(types.RecommendationRequest{}, append([]types.RankedStation(nil), rows...))
		assert.Equal(t, "ST_101", got[0].StationID)
		assert.InDelta(t, 0.80, got[0].Score, 1e-9)
	})

	t.Run("prefer nearby promotes the close station", func(t *testing.T) {
		got := ApplyPreferences(types.RecommendationRequest{PreferNearby: true},
			append([]types.RankedStation(nil), rows...))
		assert.Equal(t, "ST_102", got[0].StationID)
		assert.InDelta(t, 0.9, got[0].Score, 1e-9)
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, 2, got[1].Rank)
	})

	t.Run("fast charger match", func(t *testing.T) {
		got := ApplyPreferences(types.RecommendationRequest{PreferredChargerType: types.ChargerFast},
			append([]types.RankedStation(nil), rows...))
		assert.Equal(t, "ST_102", got[0].StationID)
	})

	t.Run("prefer reliable needs a low fault probability", func(t *testing.T) {
		withFault := append([]types.RankedStation(nil), rows...)
		withFault[1].Fault = &types.FaultPrediction{StationID: "ST_102", FaultProbability: 0.05}
		got := ApplyPreferences(types.RecommendationRequest{PreferReliable: true}, withFault)
		assert.Equal(t, "ST_102", got[0].StationID)

		noFault := append([]types.RankedStation(nil), rows...)
		got = ApplyPreferences(types.RecommendationRequest{PreferReliable: true}, noFault)
		assert.Equal(t, "ST_101", got[0].StationID, "no fault snapshot, no boost")
	})
}

func TestHaversine(t *testing.T) {
	sf := types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}
	la := types.GeoPoint{Latitude: 34.0522, Longitude: -118.2437}

	assert.InDelta(t, 0, Haversine(sf, sf), 1e-9)
	assert.InDelta(t, 559, Haversine(sf, la), 5, "SF to LA is about 559 km")
	assert.InDelta(t, Haversine(sf, la), Haversine(la, sf), 1e-9)
}
