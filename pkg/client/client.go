package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/ingest"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// defaultTimeout caps one API call including body transfer.
const defaultTimeout = 10 * time.Second

// Client calls a VoltGrid node over its HTTP API. Errors returned by the
// node are rebuilt with their original kind and field messages, so callers
// can branch on errs.KindOf exactly as server-side code does.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option adjusts the client.
type Option func(*Client)

// WithHTTPClient substitutes the transport. The caller keeps ownership of
// the passed client and its timeout settings.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout caps each call. Ignored when WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the node at baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitTelemetry feeds one station observation into the pipeline.
func (c *Client) SubmitTelemetry(ctx context.Context, sub ingest.TelemetrySubmission) (ingest.Ack, error) {
	var ack ingest.Ack
	err := c.do(ctx, http.MethodPost, "/ingest/station", sub, &ack)
	return ack, err
}

// SubmitHealth feeds one station health report into the pipeline.
func (c *Client) SubmitHealth(ctx context.Context, sub ingest.HealthSubmission) (ingest.Ack, error) {
	var ack ingest.Ack
	err := c.do(ctx, http.MethodPost, "/ingest/health", sub, &ack)
	return ack, err
}

// SubmitGridStatus feeds one grid area report into the pipeline.
func (c *Client) SubmitGridStatus(ctx context.Context, sub ingest.GridSubmission) (ingest.Ack, error) {
	var ack ingest.Ack
	err := c.do(ctx, http.MethodPost, "/ingest/grid", sub, &ack)
	return ack, err
}

// SubmitUserContext updates a user's session context.
func (c *Client) SubmitUserContext(ctx context.Context, sub ingest.ContextSubmission) (ingest.Ack, error) {
	var ack ingest.Ack
	err := c.do(ctx, http.MethodPost, "/ingest/user-context", sub, &ack)
	return ack, err
}

// Recommend requests a ranked station list for one user.
func (c *Client) Recommend(ctx context.Context, req types.RecommendationRequest) (types.Recommendation, error) {
	var rec types.Recommendation
	err := c.do(ctx, http.MethodPost, "/recommend", req, &rec)
	return rec, err
}

// Lookup fetches a previously served recommendation by request id. After the
// response cache entry expires this is NotFound.
func (c *Client) Lookup(ctx context.Context, requestID string) (types.Recommendation, error) {
	var rec types.Recommendation
	err := c.do(ctx, http.MethodGet, "/recommend/"+url.PathEscape(requestID), nil, &rec)
	return rec, err
}

// Select records which recommended station the user picked.
func (c *Client) Select(ctx context.Context, requestID, stationID string) error {
	body := map[string]string{"stationId": stationID}
	return c.do(ctx, http.MethodPost, "/recommend/"+url.PathEscape(requestID)+"/select", body, nil)
}

// Feedback records a 1..5 rating for a served recommendation.
func (c *Client) Feedback(ctx context.Context, requestID string, rating int) error {
	body := map[string]int{"rating": rating}
	return c.do(ctx, http.MethodPost, "/recommend/"+url.PathEscape(requestID)+"/feedback", body, nil)
}

// StationScore fetches the live composite score of one station.
func (c *Client) StationScore(ctx context.Context, stationID string) (types.StationScore, error) {
	var score types.StationScore
	err := c.do(ctx, http.MethodGet, "/station/"+url.PathEscape(stationID)+"/score", nil, &score)
	return score, err
}

// StationHealth fetches the last reported health of one station.
func (c *Client) StationHealth(ctx context.Context, stationID string) (types.StationHealth, error) {
	var health types.StationHealth
	err := c.do(ctx, http.MethodGet, "/station/"+url.PathEscape(stationID)+"/health", nil, &health)
	return health, err
}

// StationFeatures fetches the engineered features of one station.
func (c *Client) StationFeatures(ctx context.Context, stationID string) (types.StationFeatures, error) {
	var features types.StationFeatures
	err := c.do(ctx, http.MethodGet, "/station/"+url.PathEscape(stationID)+"/features", nil, &features)
	return features, err
}

// Healthy reports whether the node considers all its components healthy.
func (c *Client) Healthy(ctx context.Context) error {
	return c.probe(ctx, "/health")
}

// Ready reports whether the node currently accepts traffic. Nodes answer
// not-ready while a critical dependency is down or during shutdown drain.
func (c *Client) Ready(ctx context.Context) error {
	return c.probe(ctx, "/ready")
}

// wireError mirrors the error block of the response envelope.
type wireError struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// wireEnvelope mirrors the response envelope with the payload left raw.
type wireEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *wireError      `json:"error"`
}

// do runs one enveloped API call. A non-nil out receives the decoded data
// payload on success.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "voltgrid api unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	var env wireEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errs.Wrap(errs.KindInternalFailure, err,
			fmt.Sprintf("malformed response (status %d)", resp.StatusCode))
	}

	if !env.Success {
		if env.Error == nil {
			return errs.Ef(errs.KindInternalFailure, "request failed with status %d", resp.StatusCode)
		}
		return &errs.Error{
			Kind:   errs.Kind(env.Error.Kind),
			Msg:    env.Error.Message,
			Fields: env.Error.Fields,
		}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errs.Wrap(errs.KindInternalFailure, err, "failed to decode response data")
		}
	}
	return nil
}

// probe hits a plain (non-enveloped) probe endpoint and folds any non-200
// answer into a DependencyUnavailable error.
func (c *Client) probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "voltgrid api unreachable")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errs.Ef(errs.KindDependencyUnavailable, "%s returned status %d", path, resp.StatusCode)
	}
	return nil
}
