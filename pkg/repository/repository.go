package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/log"
)

// Repositories bundles the typed repositories sharing one bounded pool.
type Repositories struct {
	Stations           *StationRepository
	Requests           *RequestLogRepository
	RecommendationLogs *RecommendationLogRepository
	History            *HistoryRepository
	Events             *SystemEventRepository
	Users              *UserRepository

	db *sqlx.DB
}

// Open connects to the durable store and returns the repository set.
func Open(ctx context.Context, cfg config.DatabaseConfig, historyEvery int) (*Repositories, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "database connect")
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	logger := log.WithComponent("repository")
	logger.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Int("pool_size", cfg.PoolSize).
		Msg("connected")

	return NewWithDB(db, historyEvery), nil
}

// NewWithDB wires the repository set over an existing handle. Used by tests.
func NewWithDB(db *sqlx.DB, historyEvery int) *Repositories {
	return &Repositories{
		Stations:           &StationRepository{db: db},
		Requests:           &RequestLogRepository{db: db},
		RecommendationLogs: &RecommendationLogRepository{db: db},
		History:            NewHistoryRepository(db, historyEvery),
		Events:             &SystemEventRepository{db: db},
		Users:              &UserRepository{db: db},
		db:                 db,
	}
}

// Migrate applies the schema. Idempotent.
func (r *Repositories) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "database ping")
	}
	return nil
}

// Close releases the pool.
func (r *Repositories) Close() error {
	return r.db.Close()
}

// notFound maps sql.ErrNoRows onto the domain error taxonomy.
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(entity, id)
	}
	return errs.Wrap(errs.KindDependencyUnavailable, err, entity+" query")
}

// Metadata is a JSONB column holding free-form key/values.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("metadata: unsupported source type %T", src)
	}
}
