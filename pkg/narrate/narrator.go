package narrate

import (
	"context"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// ExplanationContext carries the structured facts an explanation is built
// from. Alternatives holds at most the two next-ranked stations.
type ExplanationContext struct {
	Request         types.RecommendationRequest
	Top             types.RankedStation
	Alternatives    []types.RankedStation
	TotalCandidates int
}

// Narrator renders a human-readable explanation for a recommendation. It
// never fails: implementations degrade to simpler text rather than return
// an error, so a recommendation always ships with an explanation.
type Narrator interface {
	Explain(ctx context.Context, ec ExplanationContext) string
}

// New selects the narrator for the given configuration. Without an API key
// no LLM client is constructed and explanations are template-composed.
func New(cfg config.NarratorConfig, broker *events.Broker) Narrator {
	if cfg.APIKey == "" {
		return &TemplateNarrator{}
	}
	return NewLLM(cfg, broker)
}
