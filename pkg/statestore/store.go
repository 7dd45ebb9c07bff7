package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/voltgrid/voltgrid/pkg/types"
)

// RankEntry is one member of the global station ranking.
type RankEntry struct {
	StationID string
	Score     float64
}

// Store is the shared state store contract used by every pipeline stage and
// the request path. Implementations must keep writes full-record replaces;
// last-writer-wins is the policy for every slot.
type Store interface {
	// Telemetry mirror
	PutTelemetry(ctx context.Context, t types.StationTelemetry) error
	GetTelemetry(ctx context.Context, stationID string) (types.StationTelemetry, error)

	// Feature cache
	PutFeatures(ctx context.Context, f types.StationFeatures) error
	GetFeatures(ctx context.Context, stationID string) (types.StationFeatures, error)

	// Score cache
	PutScore(ctx context.Context, s types.StationScore) error
	GetScore(ctx context.Context, stationID string) (types.StationScore, error)

	// Health cache
	PutHealth(ctx context.Context, h types.StationHealth) error
	GetHealth(ctx context.Context, stationID string) (types.StationHealth, error)

	// Grid status mirror
	PutGridStatus(ctx context.Context, g types.GridStatus) error
	GetGridStatus(ctx context.Context, gridID string) (types.GridStatus, error)

	// Prediction cache, one slot per (kind, id)
	PutPrediction(ctx context.Context, kind types.PredictionKind, id string, v any) error
	GetPrediction(ctx context.Context, kind types.PredictionKind, id string, dst any) error

	// User session state
	PutUserContext(ctx context.Context, uc types.UserContext) error
	GetUserContext(ctx context.Context, userID string) (types.UserContext, error)
	PutUserSession(ctx context.Context, sessionID string, uc types.UserContext) error

	// Assembled responses
	PutRecommendation(ctx context.Context, rec types.Recommendation) error
	GetRecommendation(ctx context.Context, requestID string) (types.Recommendation, error)

	// Global ranking
	UpdateRanking(ctx context.Context, stationID string, score float64) error
	TopRanked(ctx context.Context, n int64) ([]RankEntry, error)
	RankingScore(ctx context.Context, stationID string) (float64, error)
	RankingSize(ctx context.Context) (int64, error)

	// Counters
	IncrCounter(ctx context.Context, name string) (int64, error)

	// Advisory locks
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, resource, token string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// keys builds the namespaced key layout.
type keys struct {
	prefix string
}

func (k keys) features(id string) string       { return k.prefix + "station:features:" + id }
func (k keys) score(id string) string          { return k.prefix + "station:score:" + id }
func (k keys) telemetry(id string) string      { return k.prefix + "station:telemetry:" + id }
func (k keys) health(id string) string         { return k.prefix + "station:health:" + id }
func (k keys) gridStatus(id string) string     { return k.prefix + "grid:status:" + id }
func (k keys) userContext(id string) string    { return k.prefix + "user:context:" + id }
func (k keys) userSession(id string) string    { return k.prefix + "user:session:" + id }
func (k keys) recommendation(id string) string { return k.prefix + "recommendation:" + id }
func (k keys) ranking() string                 { return k.prefix + "ranking:stations" }
func (k keys) counter(name string) string      { return k.prefix + "metrics:counter:" + name }
func (k keys) lock(resource string) string     { return k.prefix + "lock:" + resource }

func (k keys) prediction(kind types.PredictionKind, id string) string {
	return fmt.Sprintf("%sprediction:%s:%s", k.prefix, kind, id)
}
