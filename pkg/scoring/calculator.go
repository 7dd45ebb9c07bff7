package scoring

import (
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// Maximum confidence decay: scores older than staleAfter seconds lose
// stalePenalty of their confidence.
const (
	staleAfter   = 300.0
	stalePenalty = 0.3

	incompleteFactor = 0.8
)

// Calculator computes the weighted utility score. Pure; deterministic for a
// fixed weight configuration.
type Calculator struct {
	weights config.ScoringConfig
}

// NewCalculator creates a calculator with the given weights.
func NewCalculator(weights config.ScoringConfig) *Calculator {
	return &Calculator{weights: weights}
}

// Score maps normalized features onto component scores (identity, rounded)
// and their weighted mean. A zero weight sum yields a zero overall score.
func (c *Calculator) Score(nf types.NormalizedFeatures) (float64, types.ComponentScores) {
	components := types.ComponentScores{
		Wait:            types.Round4(nf.WaitTime),
		Availability:    types.Round4(nf.Availability),
		Reliability:     types.Round4(nf.Reliability),
		Distance:        types.Round4(nf.Distance),
		EnergyStability: types.Round4(nf.EnergyStability),
	}

	w := c.weights
	sum := w.WeightWaitTime + w.WeightAvailability + w.WeightReliability +
		w.WeightDistance + w.WeightEnergyStability
	if sum <= 0 {
		return 0, components
	}

	overall := (w.WeightWaitTime*components.Wait +
		w.WeightAvailability*components.Availability +
		w.WeightReliability*components.Reliability +
		w.WeightDistance*components.Distance +
		w.WeightEnergyStability*components.EnergyStability) / sum

	return types.Round4(overall), components
}

// Confidence degrades with feature age and completeness. Features older than
// staleAfter seconds carry the full staleness penalty; features that arrived
// with normalized fields missing are discounted by the incompleteness factor.
func Confidence(featureTimestamp, now int64, complete bool) float64 {
	age := float64(now - featureTimestamp)
	if age < 0 {
		age = 0
	}
	staleness := age / staleAfter
	if staleness > 1 {
		staleness = 1
	}

	conf := 1 - staleness*stalePenalty
	if !complete {
		conf *= incompleteFactor
	}
	return types.Round4(conf)
}
