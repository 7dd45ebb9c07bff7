package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// rawPrediction is the wire shape of one model-service response. prediction
// may be a probability or a class index depending on the model; typed
// transforms are defensive about which.
type rawPrediction struct {
	Prediction    float64   `json:"prediction"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Gateway mediates every external model call: SSS-cached, circuit-broken per
// model, falling back to deterministic zero-value variants when a model is
// down. It never propagates a model failure except context cancellation.
type Gateway struct {
	store    statestore.Store
	producer *bus.Producer
	broker   *events.Broker
	client   *http.Client
	cfg      config.ModelsConfig
	breakers map[types.PredictionKind]*gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewGateway constructs the gateway with one circuit breaker per model kind.
// producer and broker are optional; with a nil producer fresh predictions are
// not re-published, with a nil broker breaker transitions are only logged.
func NewGateway(store statestore.Store, producer *bus.Producer, broker *events.Broker,
	cfg config.ModelsConfig, breakerCfg config.BreakerConfig) *Gateway {

	g := &Gateway{
		store:    store,
		producer: producer,
		broker:   broker,
		client:   &http.Client{Timeout: cfg.CallTimeout},
		cfg:      cfg,
		breakers: make(map[types.PredictionKind]*gobreaker.CircuitBreaker, len(allKinds)),
		logger:   log.WithComponent("predict"),
	}
	for _, kind := range allKinds {
		g.breakers[kind] = g.newBreaker(kind, breakerCfg)
	}
	return g
}

// allKinds is the fixed model catalogue. A kind missing here cannot be
// fetched; adding a model means adding its typed fetcher and its entry.
var allKinds = []types.PredictionKind{
	types.KindLoad,
	types.KindFault,
	types.KindTraffic,
	types.KindMicroTraffic,
	types.KindBatteryRebalance,
	types.KindStockOrder,
	types.KindStaffDiversion,
	types.KindTieUpStorage,
	types.KindCustomerArrival,
	types.KindBatteryDemand,
	types.KindQueueSurge,
	types.KindWaitSurge,
	types.KindMaintenance,
	types.KindRecommender,
}

func (g *Gateway) newBreaker(kind types.PredictionKind, cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     string(kind),
		Interval: cfg.Window,
		Timeout:  cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.Threshold
		},
		// Cancellation of the enclosing request is not the model's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			g.logger.Warn().
				Str("model", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("breaker state change")
			g.publishBreakerEvent(name, to)
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func (g *Gateway) publishBreakerEvent(model string, to gobreaker.State) {
	if g.broker == nil {
		return
	}
	eventType := events.EventBreakerClosed
	message := fmt.Sprintf("%s model breaker recovered", model)
	if to == gobreaker.StateOpen {
		eventType = events.EventBreakerOpened
		message = fmt.Sprintf("%s model breaker opened", model)
	}
	g.broker.Publish(events.Event{
		Type:      eventType,
		Component: "predict",
		Message:   message,
		Metadata:  map[string]string{"model": model},
	})
}

// predict runs one circuit-broken model call.
func (g *Gateway) predict(ctx context.Context, kind types.PredictionKind, input map[string]any) (rawPrediction, error) {
	cb, ok := g.breakers[kind]
	if !ok {
		return rawPrediction{}, errs.Ef(errs.KindInternalFailure, "no model bound for kind %q", kind)
	}

	result, err := cb.Execute(func() (any, error) {
		return g.call(ctx, kind, input)
	})
	if err != nil {
		metrics.PredictionCalls.WithLabelValues(string(kind), "error").Inc()
		return rawPrediction{}, err
	}
	metrics.PredictionCalls.WithLabelValues(string(kind), "ok").Inc()
	return result.(rawPrediction), nil
}

// call performs the HTTP round trip with the per-call timeout.
func (g *Gateway) call(ctx context.Context, kind types.PredictionKind, input map[string]any) (rawPrediction, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	body, err := json.Marshal(input)
	if err != nil {
		return rawPrediction{}, errs.Wrap(errs.KindInternalFailure, err, "encode model input")
	}

	endpoint := fmt.Sprintf("%s/models/%s/predict", g.cfg.ServiceURL, url.PathEscape(string(kind)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return rawPrediction{}, errs.Wrap(errs.KindInternalFailure, err, "build model request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return rawPrediction{}, errs.Wrap(errs.KindDependencyUnavailable, err, "model call")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return rawPrediction{}, errs.Ef(errs.KindDependencyUnavailable, "model %s returned status %d", kind, resp.StatusCode)
	}

	var raw rawPrediction
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return rawPrediction{}, errs.Wrap(errs.KindDependencyUnavailable, err, "decode model response")
	}
	if raw.Error != "" {
		return rawPrediction{}, errs.Ef(errs.KindDependencyUnavailable, "model %s error: %s", kind, raw.Error)
	}
	return raw, nil
}

// fetch is the shared cache-call-transform path behind every typed fetcher.
// On model failure it returns the fallback value and a nil error; only
// context cancellation propagates.
func fetch[T any](ctx context.Context, g *Gateway, kind types.PredictionKind, id string,
	input map[string]any, transform func(raw rawPrediction, now int64) T, fallback func(now int64) T) (T, error) {

	var cached T
	if err := g.store.GetPrediction(ctx, kind, id, &cached); err == nil {
		return cached, nil
	}

	now := time.Now().Unix()
	raw, err := g.predict(ctx, kind, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			var zero T
			return zero, err
		}
		g.logger.Debug().Err(err).
			Str("model", string(kind)).
			Str("id", id).
			Msg("serving fallback prediction")
		g.publishFallbackEvent(kind, id)
		return fallback(now), nil
	}

	value := transform(raw, now)
	if err := g.store.PutPrediction(ctx, kind, id, value); err != nil {
		g.logger.Warn().Err(err).Str("model", string(kind)).Msg("prediction cache write failed")
	}
	g.republish(ctx, kind, id, value)
	return value, nil
}

func (g *Gateway) publishFallbackEvent(kind types.PredictionKind, id string) {
	if g.broker == nil {
		return
	}
	g.broker.Publish(events.Event{
		Type:      events.EventModelFallback,
		Component: "predict",
		Message:   fmt.Sprintf("%s prediction served from fallback", kind),
		Metadata:  map[string]string{"model": string(kind), "id": id},
	})
}

// Event is the station.predictions payload: a fresh model output with its
// kind discriminator, for downstream analytics subscribers.
type Event struct {
	Kind      types.PredictionKind `json:"kind"`
	StationID string               `json:"stationId"`
	Payload   json.RawMessage      `json:"payload"`
}

// republish mirrors fresh (non-fallback) predictions onto the bus,
// best-effort. The serving path never depends on it.
func (g *Gateway) republish(ctx context.Context, kind types.PredictionKind, id string, value any) {
	if g.producer == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	event := Event{Kind: kind, StationID: id, Payload: payload}
	if err := g.producer.Publish(ctx, bus.TopicStationPredictions, id, event); err != nil {
		g.logger.Debug().Err(err).Str("model", string(kind)).Msg("prediction republish failed")
	}
}
