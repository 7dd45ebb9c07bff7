package optimize

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

const (
	// candidateFactor sizes the ranking fetch relative to the result limit,
	// leaving headroom for candidates the gates reject.
	candidateFactor = 3

	minHealthScore     = 50.0
	maxFaultProb       = 0.3
	minAvailability    = 0.1
	defaultMaxDistance = 50.0
	coldStartScore     = 0.5
)

// StationDirectory is the master-data lookup the optimizer needs.
type StationDirectory interface {
	GetByID(ctx context.Context, id string) (*types.Station, error)
	FindAll(ctx context.Context) ([]types.Station, error)
}

// PredictionSource supplies the model signals consulted while ranking.
type PredictionSource interface {
	LoadForecast(ctx context.Context, stationID string) (types.LoadForecast, error)
	FaultPrediction(ctx context.Context, stationID string) (types.FaultPrediction, error)
}

// Optimizer turns the global score ranking into a per-user station list:
// gate unhealthy and overfull candidates, weight the survivors by distance,
// and rank what remains.
type Optimizer struct {
	store       statestore.Store
	stations    StationDirectory
	predictions PredictionSource
	logger      zerolog.Logger
}

// New constructs the optimizer over the shared state store, the station
// registry, and the model gateway.
func New(store statestore.Store, stations StationDirectory, predictions PredictionSource) *Optimizer {
	return &Optimizer{
		store:       store,
		stations:    stations,
		predictions: predictions,
		logger:      log.WithComponent("optimize"),
	}
}

// Rank selects up to the requested limit of stations for one user, sorted by
// distance-adjusted score. The second return is the number of candidates
// considered before gating.
func (o *Optimizer) Rank(ctx context.Context, req types.RecommendationRequest) ([]types.RankedStation, int, error) {
	limit := req.EffectiveLimit()

	entries, err := o.store.TopRanked(ctx, int64(candidateFactor*limit))
	if err != nil {
		return nil, 0, err
	}
	if len(entries) == 0 {
		return o.coldStart(ctx, req, limit)
	}

	rows := make([]types.RankedStation, 0, limit)
	for _, entry := range entries {
		if len(rows) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		row, ok, err := o.evaluate(ctx, req, entry)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			rows = append(rows, row)
		}
	}

	sortAndRank(rows)
	return rows, len(entries), nil
}

// evaluate runs one candidate through the gates and prices its distance.
// ok=false means the candidate was gated out; err is reserved for lookup
// infrastructure failures and cancellation.
func (o *Optimizer) evaluate(ctx context.Context, req types.RecommendationRequest, entry statestore.RankEntry) (types.RankedStation, bool, error) {
	id := entry.StationID

	// Health gate. Stations with no health record pass.
	if h, err := o.store.GetHealth(ctx, id); err == nil {
		if !h.Status.Selectable() || h.HealthScore < minHealthScore {
			return types.RankedStation{}, false, nil
		}
	}

	var (
		features types.StationFeatures
		load     types.LoadForecast
		fault    types.FaultPrediction
		featErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		features, featErr = o.store.GetFeatures(gctx, id)
		return nil
	})
	g.Go(func() error {
		var err error
		fault, err = o.predictions.FaultPrediction(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		load, err = o.predictions.LoadForecast(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		// Fetchers only error on cancellation.
		return types.RankedStation{}, false, err
	}

	// Fault gate. Fallback predictions carry no signal and pass.
	if !fault.Fallback && fault.FaultProbability > maxFaultProb {
		return types.RankedStation{}, false, nil
	}

	// Feature gates. A ranked station without features is stale; skip it.
	if featErr != nil {
		return types.RankedStation{}, false, nil
	}
	if features.ChargerAvailabilityRatio < minAvailability {
		return types.RankedStation{}, false, nil
	}
	if req.MaxWaitTime != nil && features.EffectiveWaitTime > *req.MaxWaitTime {
		return types.RankedStation{}, false, nil
	}

	station, err := o.stations.GetByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			o.logger.Debug().Str("station_id", id).Msg("ranked station missing from registry")
			return types.RankedStation{}, false, nil
		}
		return types.RankedStation{}, false, err
	}

	distance := Haversine(req.Location, station.Location())
	if req.MaxDistance != nil && distance > *req.MaxDistance {
		return types.RankedStation{}, false, nil
	}

	row := types.RankedStation{
		StationID:         id,
		Name:              station.Name,
		Address:           station.Address,
		Region:            station.Region,
		Score:             adjustScore(entry.Score, distance, req.MaxDistance),
		BaseScore:         entry.Score,
		EstimatedWaitTime: features.EffectiveWaitTime,
		EstimatedDistance: types.Round4(distance),
		AvailableChargers: int(math.Round(features.ChargerAvailabilityRatio * float64(station.TotalChargers))),
		ChargerTypes:      station.ChargerTypes,
		Features:          &features,
	}
	if !load.Fallback {
		row.Load = &load
	}
	if !fault.Fallback {
		row.Fault = &fault
	}
	return row, true, nil
}

// adjustScore discounts a base score by distance with an exponential decay
// whose scale is a third of the allowed radius.
func adjustScore(base, distanceKm float64, maxDistance *float64) float64 {
	radius := defaultMaxDistance
	if maxDistance != nil && *maxDistance > 0 {
		radius = *maxDistance
	}
	return types.Round4(base * math.Exp(-distanceKm/(radius/3)))
}

// coldStart serves the empty-ranking bootstrap: every registered station as
// a neutral-score stub, nearest first.
func (o *Optimizer) coldStart(ctx context.Context, req types.RecommendationRequest, limit int) ([]types.RankedStation, int, error) {
	stations, err := o.stations.FindAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	o.logger.Info().Int("stations", len(stations)).Msg("ranking empty, serving cold-start stubs")

	rows := make([]types.RankedStation, 0, len(stations))
	for i := range stations {
		st := &stations[i]
		rows = append(rows, types.RankedStation{
			StationID:         st.ID,
			Name:              st.Name,
			Address:           st.Address,
			Region:            st.Region,
			Score:             coldStartScore,
			BaseScore:         coldStartScore,
			EstimatedDistance: types.Round4(Haversine(req.Location, st.Location())),
			ChargerTypes:      st.ChargerTypes,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EstimatedDistance != rows[j].EstimatedDistance {
			return rows[i].EstimatedDistance < rows[j].EstimatedDistance
		}
		return rows[i].StationID < rows[j].StationID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, len(stations), nil
}

// sortAndRank orders rows by adjusted score, breaking ties toward the nearer
// and then the lexicographically smaller station, and assigns 1-based ranks.
func sortAndRank(rows []types.RankedStation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].EstimatedDistance != rows[j].EstimatedDistance {
			return rows[i].EstimatedDistance < rows[j].EstimatedDistance
		}
		return rows[i].StationID < rows[j].StationID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}
