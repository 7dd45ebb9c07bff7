package predict

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/voltgrid/pkg/types"
)

// LoadForecast predicts near-term utilization for one station.
func (g *Gateway) LoadForecast(ctx context.Context, stationID string) (types.LoadForecast, error) {
	return fetch(ctx, g, types.KindLoad, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.LoadForecast {
			return types.LoadForecast{
				StationID:     stationID,
				PredictedLoad: types.Round4(types.Clamp01(raw.Prediction)),
				Confidence:    raw.Confidence,
				Timestamp:     now,
			}
		},
		func(now int64) types.LoadForecast {
			return types.LoadForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// FaultPrediction predicts fault probability for one station. Some fault
// models return a class index in prediction and the real probability in
// probabilities[1]; the probability is preferred and always clamped, since a
// class index can exceed 1.
func (g *Gateway) FaultPrediction(ctx context.Context, stationID string) (types.FaultPrediction, error) {
	return fetch(ctx, g, types.KindFault, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.FaultPrediction {
			p := raw.Prediction
			if len(raw.Probabilities) > 1 {
				p = raw.Probabilities[1]
			}
			p = types.Round4(types.Clamp01(p))
			return types.FaultPrediction{
				StationID:        stationID,
				FaultProbability: p,
				RiskLevel:        types.RiskLevelFor(p),
				Confidence:       raw.Confidence,
				Timestamp:        now,
			}
		},
		func(now int64) types.FaultPrediction {
			return types.FaultPrediction{StationID: stationID, RiskLevel: types.RiskLow, Fallback: true, Timestamp: now}
		})
}

// TrafficForecast predicts congestion for a region.
func (g *Gateway) TrafficForecast(ctx context.Context, region string) (types.TrafficForecast, error) {
	return fetch(ctx, g, types.KindTraffic, region, map[string]any{"region": region},
		func(raw rawPrediction, now int64) types.TrafficForecast {
			return types.TrafficForecast{
				Region:          region,
				CongestionLevel: types.Round4(types.Clamp01(raw.Prediction)),
				Confidence:      raw.Confidence,
				Timestamp:       now,
			}
		},
		func(now int64) types.TrafficForecast {
			return types.TrafficForecast{Region: region, Fallback: true, Timestamp: now}
		})
}

// MicroTraffic predicts inbound vehicle flow at one station.
func (g *Gateway) MicroTraffic(ctx context.Context, stationID string) (types.MicroTrafficForecast, error) {
	return fetch(ctx, g, types.KindMicroTraffic, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.MicroTrafficForecast {
			return types.MicroTrafficForecast{
				StationID:   stationID,
				InboundFlow: types.Round4(nonNegative(raw.Prediction)),
				Confidence:  raw.Confidence,
				Timestamp:   now,
			}
		},
		func(now int64) types.MicroTrafficForecast {
			return types.MicroTrafficForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// BatteryRebalance suggests battery transfers for one station. Models that
// report both directions do so through probabilities [in, out].
func (g *Gateway) BatteryRebalance(ctx context.Context, stationID string) (types.BatteryRebalancePlan, error) {
	return fetch(ctx, g, types.KindBatteryRebalance, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.BatteryRebalancePlan {
			plan := types.BatteryRebalancePlan{
				StationID:  stationID,
				Confidence: raw.Confidence,
				Timestamp:  now,
			}
			if len(raw.Probabilities) >= 2 {
				plan.BatteriesIn = roundCount(raw.Probabilities[0])
				plan.BatteriesOut = roundCount(raw.Probabilities[1])
			} else {
				plan.BatteriesIn = roundCount(raw.Prediction)
			}
			return plan
		},
		func(now int64) types.BatteryRebalancePlan {
			return types.BatteryRebalancePlan{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// StockOrder suggests a battery stock order quantity for one station.
func (g *Gateway) StockOrder(ctx context.Context, stationID string) (types.StockOrderSuggestion, error) {
	return fetch(ctx, g, types.KindStockOrder, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.StockOrderSuggestion {
			return types.StockOrderSuggestion{
				StationID:  stationID,
				OrderQty:   roundCount(raw.Prediction),
				Confidence: raw.Confidence,
				Timestamp:  now,
			}
		},
		func(now int64) types.StockOrderSuggestion {
			return types.StockOrderSuggestion{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// StaffDiversion suggests a staffing delta for one station; negative means
// staff can be diverted away.
func (g *Gateway) StaffDiversion(ctx context.Context, stationID string) (types.StaffDiversionPlan, error) {
	return fetch(ctx, g, types.KindStaffDiversion, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.StaffDiversionPlan {
			return types.StaffDiversionPlan{
				StationID:  stationID,
				StaffDelta: int(math.Round(raw.Prediction)),
				Confidence: raw.Confidence,
				Timestamp:  now,
			}
		},
		func(now int64) types.StaffDiversionPlan {
			return types.StaffDiversionPlan{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// TieUpStorage suggests grid-tied storage dispatch for one station.
func (g *Gateway) TieUpStorage(ctx context.Context, stationID string) (types.TieUpStoragePlan, error) {
	return fetch(ctx, g, types.KindTieUpStorage, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.TieUpStoragePlan {
			return types.TieUpStoragePlan{
				StationID:  stationID,
				StorageKwh: types.Round4(nonNegative(raw.Prediction)),
				Confidence: raw.Confidence,
				Timestamp:  now,
			}
		},
		func(now int64) types.TieUpStoragePlan {
			return types.TieUpStoragePlan{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// CustomerArrival predicts arrivals per hour at one station.
func (g *Gateway) CustomerArrival(ctx context.Context, stationID string) (types.CustomerArrivalForecast, error) {
	return fetch(ctx, g, types.KindCustomerArrival, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.CustomerArrivalForecast {
			return types.CustomerArrivalForecast{
				StationID:       stationID,
				ArrivalsPerHour: types.Round4(nonNegative(raw.Prediction)),
				Confidence:      raw.Confidence,
				Timestamp:       now,
			}
		},
		func(now int64) types.CustomerArrivalForecast {
			return types.CustomerArrivalForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// BatteryDemand predicts battery swaps per hour at one station.
func (g *Gateway) BatteryDemand(ctx context.Context, stationID string) (types.BatteryDemandForecast, error) {
	return fetch(ctx, g, types.KindBatteryDemand, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.BatteryDemandForecast {
			return types.BatteryDemandForecast{
				StationID:    stationID,
				SwapsPerHour: types.Round4(nonNegative(raw.Prediction)),
				Confidence:   raw.Confidence,
				Timestamp:    now,
			}
		},
		func(now int64) types.BatteryDemandForecast {
			return types.BatteryDemandForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// QueueSurge predicts near-term queue length at one station.
func (g *Gateway) QueueSurge(ctx context.Context, stationID string) (types.QueueSurgeForecast, error) {
	return fetch(ctx, g, types.KindQueueSurge, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.QueueSurgeForecast {
			return types.QueueSurgeForecast{
				StationID:      stationID,
				PredictedQueue: types.Round4(nonNegative(raw.Prediction)),
				Confidence:     raw.Confidence,
				Timestamp:      now,
			}
		},
		func(now int64) types.QueueSurgeForecast {
			return types.QueueSurgeForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// WaitSurge predicts near-term wait minutes at one station.
func (g *Gateway) WaitSurge(ctx context.Context, stationID string) (types.WaitSurgeForecast, error) {
	return fetch(ctx, g, types.KindWaitSurge, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.WaitSurgeForecast {
			return types.WaitSurgeForecast{
				StationID:     stationID,
				PredictedWait: types.Round4(nonNegative(raw.Prediction)),
				Confidence:    raw.Confidence,
				Timestamp:     now,
			}
		},
		func(now int64) types.WaitSurgeForecast {
			return types.WaitSurgeForecast{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// MaintenanceAction flags whether a station needs near-term maintenance.
// The model output is a probability (or class); 0.5 is the action cutoff.
func (g *Gateway) MaintenanceAction(ctx context.Context, stationID string) (types.MaintenanceAction, error) {
	return fetch(ctx, g, types.KindMaintenance, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.MaintenanceAction {
			return types.MaintenanceAction{
				StationID:      stationID,
				ActionRequired: raw.Prediction >= 0.5,
				Confidence:     raw.Confidence,
				Timestamp:      now,
			}
		},
		func(now int64) types.MaintenanceAction {
			return types.MaintenanceAction{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// RecommenderSignal is the external recommender's confidence in a station.
func (g *Gateway) RecommenderSignal(ctx context.Context, stationID string) (types.RecommenderSignal, error) {
	return fetch(ctx, g, types.KindRecommender, stationID, stationInput(stationID),
		func(raw rawPrediction, now int64) types.RecommenderSignal {
			conf := raw.Confidence
			if conf == 0 {
				conf = raw.Prediction
			}
			return types.RecommenderSignal{
				StationID:  stationID,
				Confidence: types.Round4(types.Clamp01(conf)),
				Timestamp:  now,
			}
		},
		func(now int64) types.RecommenderSignal {
			return types.RecommenderSignal{StationID: stationID, Fallback: true, Timestamp: now}
		})
}

// FetchAll fans out the auxiliary model set for a group of ranked stations,
// bounded by the configured parallelism. Failed and fallback predictions are
// omitted rather than attached; the region traffic forecast is fetched once
// and shared.
func (g *Gateway) FetchAll(ctx context.Context, region string, stationIDs []string) map[string]*types.OperationalPredictions {
	results := make(map[string]*types.OperationalPredictions, len(stationIDs))
	for _, id := range stationIDs {
		results[id] = &types.OperationalPredictions{}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxParallel)

	var traffic *types.TrafficForecast
	eg.Go(func() error {
		if v, err := g.TrafficForecast(ctx, region); err == nil && !v.Fallback {
			traffic = &v
		}
		return nil
	})

	for _, id := range stationIDs {
		id := id
		p := results[id]
		eg.Go(func() error {
			if v, err := g.MicroTraffic(ctx, id); err == nil && !v.Fallback {
				p.MicroTraffic = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.BatteryRebalance(ctx, id); err == nil && !v.Fallback {
				p.BatteryRebalance = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.StockOrder(ctx, id); err == nil && !v.Fallback {
				p.StockOrder = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.StaffDiversion(ctx, id); err == nil && !v.Fallback {
				p.StaffDiversion = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.TieUpStorage(ctx, id); err == nil && !v.Fallback {
				p.TieUpStorage = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.CustomerArrival(ctx, id); err == nil && !v.Fallback {
				p.CustomerArrival = &v
			}
			return nil
		})
		eg.Go(func() error {
			if v, err := g.BatteryDemand(ctx, id); err == nil && !v.Fallback {
				p.BatteryDemand = &v
			}
			return nil
		})
	}
	_ = eg.Wait()

	for _, p := range results {
		p.Traffic = traffic
	}
	return results
}

func stationInput(stationID string) map[string]any {
	return map[string]any{"stationId": stationID}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func roundCount(v float64) int {
	if v < 0 {
		return 0
	}
	return int(math.Round(v))
}
