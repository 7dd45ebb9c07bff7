package narrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/types"
)

func testContext() ExplanationContext {
	return ExplanationContext{
		Request: types.RecommendationRequest{UserID: "U_1"},
		Top: types.RankedStation{
			StationID:         "ST_101",
			Name:              "VoltHub Central",
			Rank:              1,
			Score:             0.87,
			EstimatedWaitTime: 4,
			EstimatedDistance: 1.8,
			AvailableChargers: 5,
		},
		Alternatives: []types.RankedStation{{
			StationID:         "ST_102",
			Name:              "GridPoint East",
			Rank:              2,
			EstimatedWaitTime: 12,
			EstimatedDistance: 3.1,
		}},
		TotalCandidates: 7,
	}
}

func TestTemplateDistanceAndWaitBuckets(t *testing.T) {
	tests := []struct {
		name         string
		distance     float64
		wait         float64
		wantDistance string
		wantWait     string
	}{
		{
			name:         "walking distance, no queue",
			distance:     0.4,
			wait:         2,
			wantDistance: "right next to you (0.4 km)",
			wantWait:     "almost no wait",
		},
		{
			name:         "short drive, short wait",
			distance:     3.2,
			wait:         8,
			wantDistance: "a short drive away (3.2 km)",
			wantWait:     "a short wait of about 8 minutes",
		},
		{
			name:         "far, long wait",
			distance:     12.0,
			wait:         22,
			wantDistance: "12.0 km away",
			wantWait:     "an estimated wait of 22 minutes",
		},
	}
	narrator := &TemplateNarrator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := testContext()
			ec.Top.EstimatedDistance = tt.distance
			ec.Top.EstimatedWaitTime = tt.wait
			ec.Alternatives = nil

			got := narrator.Explain(context.Background(), ec)
			assert.Contains(t, got, "VoltHub Central")
			assert.Contains(t, got, tt.wantDistance)
			assert.Contains(t, got, tt.wantWait)
		})
	}
}

func TestTemplateComparativeImprovement(t *testing.T) {
	narrator := &TemplateNarrator{}

	got := narrator.Explain(context.Background(), testContext())
	assert.Contains(t, got, "saves about 8 minutes")
	assert.Contains(t, got, "GridPoint East")

	ec := testContext()
	ec.Alternatives[0].EstimatedWaitTime = ec.Top.EstimatedWaitTime + 0.5
	got = narrator.Explain(context.Background(), ec)
	assert.NotContains(t, got, "saves about", "sub-minute gaps are not worth mentioning")
}

func TestTemplateReliabilityMention(t *testing.T) {
	narrator := &TemplateNarrator{}

	ec := testContext()
	ec.Top.Features = &types.StationFeatures{StationReliabilityScore: 0.95}
	assert.Contains(t, narrator.Explain(context.Background(), ec), "very reliably")

	ec.Top.Features.StationReliabilityScore = 0.85
	assert.NotContains(t, narrator.Explain(context.Background(), ec), "very reliably")
}

func TestTemplateAdvisories(t *testing.T) {
	narrator := &TemplateNarrator{}

	ec := testContext()
	ec.Top.Load = &types.LoadForecast{StationID: "ST_101", PredictedLoad: 0.85}
	ec.Top.Fault = &types.FaultPrediction{StationID: "ST_101", RiskLevel: types.RiskMedium}
	got := narrator.Explain(context.Background(), ec)
	assert.Contains(t, got, "expected to get busy")
	assert.Contains(t, got, "slowdowns are possible")

	ec.Top.Load.Fallback = true
	ec.Top.Fault.RiskLevel = types.RiskLow
	got = narrator.Explain(context.Background(), ec)
	assert.NotContains(t, got, "expected to get busy", "fallback predictions carry no signal")
	assert.NotContains(t, got, "slowdowns are possible")
}

func TestFactoryWithoutKeyIsTemplateAndFast(t *testing.T) {
	cfg := config.Default().Narrator
	require.Empty(t, cfg.APIKey)
	narrator := New(cfg, nil)
	require.IsType(t, &TemplateNarrator{}, narrator)

	start := time.Now()
	got := narrator.Explain(context.Background(), testContext())
	elapsed := time.Since(start)

	require.NotEmpty(t, got)
	assert.Contains(t, got, "VoltHub Central")
	assert.Contains(t, got, "1.8 km")
	assert.Less(t, elapsed, 50*time.Millisecond)
}
