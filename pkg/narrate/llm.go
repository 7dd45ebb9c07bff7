package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

const systemPrompt = "You write short, friendly explanations for an EV driver " +
	"choosing a battery swap or charging station. Reply with one paragraph of two " +
	"or three sentences in plain text. No greetings, no markdown, no lists. " +
	"Mention the station name, the distance, and the expected wait."

// LLMNarrator renders explanations with an LLM, bounded by the configured
// call timeout, and degrades to the template on any failure or empty reply.
type LLMNarrator struct {
	client   anthropic.Client
	cfg      config.NarratorConfig
	broker   *events.Broker
	template TemplateNarrator
	logger   zerolog.Logger
}

// NewLLM constructs the LLM-backed narrator. broker is optional; extra
// request options exist for tests (base URL, retry policy).
func NewLLM(cfg config.NarratorConfig, broker *events.Broker, opts ...option.RequestOption) *LLMNarrator {
	options := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &LLMNarrator{
		client: anthropic.NewClient(options...),
		cfg:    cfg,
		broker: broker,
		logger: log.WithComponent("narrate"),
	}
}

// Explain asks the model for a short paragraph built from the structured
// facts; the reply is used verbatim.
func (n *LLMNarrator) Explain(ctx context.Context, ec ExplanationContext) string {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.CallTimeout)
	defer cancel()

	message, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(n.cfg.Model),
		MaxTokens:   int64(n.cfg.MaxTokens),
		Temperature: anthropic.Float(n.cfg.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(ec))),
		},
	})
	if err != nil {
		return n.fallback(ctx, ec, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return n.fallback(ctx, ec, errors.New("empty completion"))
	}
	return text
}

func (n *LLMNarrator) fallback(ctx context.Context, ec ExplanationContext, err error) string {
	metrics.NarrationFallbacks.Inc()
	n.logger.Warn().Err(err).Str("station", ec.Top.StationID).Msg("narration fell back to template")
	if n.broker != nil {
		n.broker.Publish(events.Event{
			Type:      events.EventNarrationFallback,
			Component: "narrate",
			Message:   "LLM narration failed, template explanation served",
			Metadata:  map[string]string{"station": ec.Top.StationID},
		})
	}
	return n.template.Explain(ctx, ec)
}

// buildPrompt lays the facts out one per line; the model has nothing else to
// go on, so everything the explanation may mention must appear here.
func buildPrompt(ec ExplanationContext) string {
	var b strings.Builder
	top := ec.Top
	fmt.Fprintf(&b, "Recommended station: %s, %.1f km away, estimated wait %.0f min, %d chargers free.\n",
		displayName(top), top.EstimatedDistance, top.EstimatedWaitTime, top.AvailableChargers)
	for _, alt := range ec.Alternatives {
		fmt.Fprintf(&b, "Alternative: %s, %.1f km, wait %.0f min.\n",
			displayName(alt), alt.EstimatedDistance, alt.EstimatedWaitTime)
	}
	fmt.Fprintf(&b, "Candidates considered: %d.\n", ec.TotalCandidates)
	if top.Load != nil && !top.Load.Fallback {
		fmt.Fprintf(&b, "Predicted load next hour: %.0f%%.\n", top.Load.PredictedLoad*100)
	}
	if top.Fault != nil && !top.Fault.Fallback {
		fmt.Fprintf(&b, "Fault risk: %s.\n", top.Fault.RiskLevel)
	}
	if ec.Request.BatteryLevel != nil {
		fmt.Fprintf(&b, "Driver battery level: %.0f%%.\n", *ec.Request.BatteryLevel)
	}
	return b.String()
}
