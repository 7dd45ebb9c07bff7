package narrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/voltgrid/voltgrid/pkg/types"
)

// TemplateNarrator composes explanations from the structured facts alone.
// It is the permanent fallback path: deterministic, no network I/O.
type TemplateNarrator struct{}

// Explain renders the rule-based explanation.
func (n *TemplateNarrator) Explain(_ context.Context, ec ExplanationContext) string {
	top := ec.Top
	var b strings.Builder

	b.WriteString(displayName(top))
	b.WriteString(" is ")
	b.WriteString(distancePhrase(top.EstimatedDistance))
	b.WriteString(" with ")
	b.WriteString(waitPhrase(top.EstimatedWaitTime))
	b.WriteString(".")

	if s := improvementSentence(top, ec.Alternatives); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	if top.Features != nil && top.Features.StationReliabilityScore >= 0.9 {
		b.WriteString(" It has been running very reliably.")
	}
	for _, s := range advisories(top) {
		b.WriteString(" ")
		b.WriteString(s)
	}
	if ec.TotalCandidates > 1 {
		fmt.Fprintf(&b, " Picked from %d stations near you.", ec.TotalCandidates)
	}
	return b.String()
}

func displayName(s types.RankedStation) string {
	if s.Name != "" {
		return s.Name
	}
	return s.StationID
}

func distancePhrase(km float64) string {
	switch {
	case km < 1:
		return fmt.Sprintf("right next to you (%.1f km)", km)
	case km < 5:
		return fmt.Sprintf("a short drive away (%.1f km)", km)
	default:
		return fmt.Sprintf("%.1f km away", km)
	}
}

func waitPhrase(minutes float64) string {
	switch {
	case minutes < 5:
		return "almost no wait"
	case minutes < 15:
		return fmt.Sprintf("a short wait of about %.0f minutes", minutes)
	default:
		return fmt.Sprintf("an estimated wait of %.0f minutes", minutes)
	}
}

// improvementSentence compares the pick against the next alternative and is
// silent when the gap is under a minute.
func improvementSentence(top types.RankedStation, alternatives []types.RankedStation) string {
	if len(alternatives) == 0 {
		return ""
	}
	next := alternatives[0]
	gain := next.EstimatedWaitTime - top.EstimatedWaitTime
	if gain < 1 {
		return ""
	}
	return fmt.Sprintf("That saves about %.0f minutes of waiting compared to %s.", gain, displayName(next))
}

func advisories(top types.RankedStation) []string {
	var out []string
	if top.Load != nil && !top.Load.Fallback && top.Load.PredictedLoad >= 0.8 {
		out = append(out, "It is expected to get busy soon, so heading over promptly helps.")
	}
	if top.Fault != nil && !top.Fault.Fallback && top.Fault.RiskLevel == types.RiskMedium {
		out = append(out, "Minor service slowdowns are possible there.")
	}
	return out
}
