package scoring

import "github.com/voltgrid/voltgrid/pkg/types"

// Model-guided adjustment thresholds. Retained defaults from the upstream
// model contracts.
const (
	loadPenaltyKnee      = 0.8
	queueSurgeThreshold  = 8.0
	waitSurgeThreshold   = 20.0
	lowRecommenderCutoff = 0.4
)

// Signals carries the optional model outputs consulted while scoring one
// station. Nil members are simply not applied; fallback predictions must not
// be placed here (a synthetic zero would penalize the station it stands for).
type Signals struct {
	Load        *types.LoadForecast
	Fault       *types.FaultPrediction
	Queue       *types.QueueSurgeForecast
	Wait        *types.WaitSurgeForecast
	Recommender *types.RecommenderSignal
	Action      *types.MaintenanceAction
}

// Adjust applies the multiplicative model penalties to a base score and
// clamps the result to [0,1].
func Adjust(score float64, s Signals) float64 {
	if s.Load != nil && s.Load.PredictedLoad > loadPenaltyKnee {
		score *= 1 - 0.5*(s.Load.PredictedLoad-loadPenaltyKnee)
	}
	if s.Fault != nil {
		switch s.Fault.RiskLevel {
		case types.RiskHigh:
			score *= 0.7
		case types.RiskMedium:
			score *= 0.9
		}
	}
	if s.Queue != nil && s.Queue.PredictedQueue > queueSurgeThreshold {
		score *= 0.95
	}
	if s.Wait != nil && s.Wait.PredictedWait > waitSurgeThreshold {
		score *= 0.95
	}
	if s.Recommender != nil && s.Recommender.Confidence < lowRecommenderCutoff {
		score *= 0.9
	}
	if s.Action != nil && s.Action.ActionRequired {
		score *= 0.85
	}
	return types.Round4(types.Clamp01(score))
}
