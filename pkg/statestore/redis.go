package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// releaseScript deletes a lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisStore implements Store on a Redis-compatible server.
type RedisStore struct {
	client *redis.Client
	keys   keys
	cfg    config.StateStoreConfig
	logger zerolog.Logger
}

// New connects to the state store and verifies the connection.
func New(ctx context.Context, cfg config.StateStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := &RedisStore{
		client: client,
		keys:   keys{prefix: cfg.KeyPrefix},
		cfg:    cfg,
		logger: log.WithComponent("statestore"),
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "state store connect")
	}

	s.logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected")
	return s, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, cfg config.StateStoreConfig) *RedisStore {
	return &RedisStore{
		client: client,
		keys:   keys{prefix: cfg.KeyPrefix},
		cfg:    cfg,
		logger: log.WithComponent("statestore"),
	}
}

func (s *RedisStore) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "state store write")
	}
	return nil
}

// get loads and decodes one envelope. Absent keys and corrupt entries both
// surface as NotFound; corrupt entries are additionally logged because they
// indicate a writer bug, not an expiry.
func (s *RedisStore) get(ctx context.Context, cache, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues(cache).Inc()
		return errs.Ef(errs.KindNotFound, "key %q not found", key)
	}
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "state store read")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(cache).Inc()
		s.logger.Warn().Str("key", key).Err(err).Msg("corrupt cache entry")
		return errs.Ef(errs.KindNotFound, "key %q corrupt", key)
	}
	metrics.CacheHits.WithLabelValues(cache).Inc()
	return nil
}

func (s *RedisStore) PutTelemetry(ctx context.Context, t types.StationTelemetry) error {
	return s.put(ctx, s.keys.telemetry(t.StationID), t, s.cfg.FeatureTTL)
}

func (s *RedisStore) GetTelemetry(ctx context.Context, stationID string) (types.StationTelemetry, error) {
	var t types.StationTelemetry
	err := s.get(ctx, "telemetry", s.keys.telemetry(stationID), &t)
	return t, err
}

func (s *RedisStore) PutFeatures(ctx context.Context, f types.StationFeatures) error {
	return s.put(ctx, s.keys.features(f.StationID), f, s.cfg.FeatureTTL)
}

func (s *RedisStore) GetFeatures(ctx context.Context, stationID string) (types.StationFeatures, error) {
	var f types.StationFeatures
	err := s.get(ctx, "features", s.keys.features(stationID), &f)
	return f, err
}

func (s *RedisStore) PutScore(ctx context.Context, sc types.StationScore) error {
	return s.put(ctx, s.keys.score(sc.StationID), sc, s.cfg.ScoreTTL)
}

func (s *RedisStore) GetScore(ctx context.Context, stationID string) (types.StationScore, error) {
	var sc types.StationScore
	err := s.get(ctx, "score", s.keys.score(stationID), &sc)
	return sc, err
}

func (s *RedisStore) PutHealth(ctx context.Context, h types.StationHealth) error {
	return s.put(ctx, s.keys.health(h.StationID), h, s.cfg.HealthTTL)
}

func (s *RedisStore) GetHealth(ctx context.Context, stationID string) (types.StationHealth, error) {
	var h types.StationHealth
	err := s.get(ctx, "health", s.keys.health(stationID), &h)
	return h, err
}

func (s *RedisStore) PutGridStatus(ctx context.Context, g types.GridStatus) error {
	return s.put(ctx, s.keys.gridStatus(g.GridID), g, s.cfg.HealthTTL)
}

func (s *RedisStore) GetGridStatus(ctx context.Context, gridID string) (types.GridStatus, error) {
	var g types.GridStatus
	err := s.get(ctx, "grid", s.keys.gridStatus(gridID), &g)
	return g, err
}

func (s *RedisStore) PutPrediction(ctx context.Context, kind types.PredictionKind, id string, v any) error {
	return s.put(ctx, s.keys.prediction(kind, id), v, s.cfg.PredictionTTL)
}

func (s *RedisStore) GetPrediction(ctx context.Context, kind types.PredictionKind, id string, dst any) error {
	return s.get(ctx, "prediction", s.keys.prediction(kind, id), dst)
}

func (s *RedisStore) PutUserContext(ctx context.Context, uc types.UserContext) error {
	return s.put(ctx, s.keys.userContext(uc.UserID), uc, s.cfg.SessionTTL)
}

func (s *RedisStore) GetUserContext(ctx context.Context, userID string) (types.UserContext, error) {
	var uc types.UserContext
	err := s.get(ctx, "user_context", s.keys.userContext(userID), &uc)
	return uc, err
}

func (s *RedisStore) PutUserSession(ctx context.Context, sessionID string, uc types.UserContext) error {
	return s.put(ctx, s.keys.userSession(sessionID), uc, s.cfg.SessionTTL)
}

func (s *RedisStore) PutRecommendation(ctx context.Context, rec types.Recommendation) error {
	return s.put(ctx, s.keys.recommendation(rec.RequestID), rec, types.RecommendationTTL)
}

func (s *RedisStore) GetRecommendation(ctx context.Context, requestID string) (types.Recommendation, error) {
	var rec types.Recommendation
	err := s.get(ctx, "recommendation", s.keys.recommendation(requestID), &rec)
	return rec, err
}

// UpdateRanking upserts the station's entry in the global ranking. ZADD
// replaces the previous score atomically, which is what makes later writes
// win.
func (s *RedisStore) UpdateRanking(ctx context.Context, stationID string, score float64) error {
	err := s.client.ZAdd(ctx, s.keys.ranking(), redis.Z{
		Score:  score,
		Member: stationID,
	}).Err()
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "ranking update")
	}
	return nil
}

// TopRanked returns up to n stations by descending score.
func (s *RedisStore) TopRanked(ctx context.Context, n int64) ([]RankEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, s.keys.ranking(), 0, n-1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "ranking read")
	}
	entries := make([]RankEntry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, RankEntry{StationID: id, Score: z.Score})
	}
	return entries, nil
}

func (s *RedisStore) RankingScore(ctx context.Context, stationID string) (float64, error) {
	score, err := s.client.ZScore(ctx, s.keys.ranking(), stationID).Result()
	if err == redis.Nil {
		return 0, errs.NotFound("ranking entry", stationID)
	}
	if err != nil {
		return 0, errs.Wrap(errs.KindDependencyUnavailable, err, "ranking score read")
	}
	return score, nil
}

func (s *RedisStore) RankingSize(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.keys.ranking()).Result()
	if err != nil {
		return 0, errs.Wrap(errs.KindDependencyUnavailable, err, "ranking size read")
	}
	return n, nil
}

func (s *RedisStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	n, err := s.client.Incr(ctx, s.keys.counter(name)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.KindDependencyUnavailable, err, "counter incr")
	}
	return n, nil
}

// AcquireLock takes the advisory lock for resource if it is free. The
// returned token must be presented to ReleaseLock.
func (s *RedisStore) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := s.client.SetNX(ctx, s.keys.lock(resource), token, ttl).Result()
	if err != nil {
		return "", false, errs.Wrap(errs.KindDependencyUnavailable, err, "lock acquire")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock frees the lock when the token still matches. Returns false
// when the lock expired or was taken over.
func (s *RedisStore) ReleaseLock(ctx context.Context, resource, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, s.client, []string{s.keys.lock(resource)}, token).Int()
	if err != nil {
		return false, errs.Wrap(errs.KindDependencyUnavailable, err, "lock release")
	}
	return res == 1, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "state store ping")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
