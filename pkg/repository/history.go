package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// HistoryRepository samples telemetry into station_history. Persisting every
// observation would swamp the database at telemetry rates, so only every Nth
// observation per station is written; the counter is in-memory and resets on
// restart, which is acceptable for a sampling policy.
type HistoryRepository struct {
	db    *sqlx.DB
	every int

	mu   sync.Mutex
	seen map[string]int
}

// NewHistoryRepository samples one in `every` observations per station.
// every <= 1 persists all observations.
func NewHistoryRepository(db *sqlx.DB, every int) *HistoryRepository {
	if every < 1 {
		every = 1
	}
	return &HistoryRepository{
		db:    db,
		every: every,
		seen:  make(map[string]int),
	}
}

// SampleTelemetry persists the observation if it falls on the sampling
// boundary for its station. Returns true when a row was written.
func (r *HistoryRepository) SampleTelemetry(ctx context.Context, t *types.StationTelemetry) (bool, error) {
	if !r.take(t.StationID) {
		return false, nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO station_history (station_id, queue_length, avg_service_time,
			available_chargers, total_chargers, fault_rate, available_power,
			max_capacity, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.StationID, t.QueueLength, t.AvgServiceTime, t.AvailableChargers,
		t.TotalChargers, t.FaultRate, t.AvailablePower, t.MaxCapacity,
		time.Unix(t.Timestamp, 0).UTC())
	if err != nil {
		return false, errs.Wrap(errs.KindDependencyUnavailable, err, "history insert")
	}
	return true, nil
}

// take advances the per-station counter and reports whether this observation
// is the one to keep. The first observation per station is always kept so a
// fresh station shows up in history immediately.
func (r *HistoryRepository) take(stationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.seen[stationID]
	r.seen[stationID] = n + 1
	return n%r.every == 0
}

// RecentForStation returns the newest history rows for a station, most recent
// first, capped at limit.
func (r *HistoryRepository) RecentForStation(ctx context.Context, stationID string, limit int) ([]HistoryRow, error) {
	if limit < 1 {
		limit = 100
	}
	var rows []HistoryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, station_id, queue_length, avg_service_time, available_chargers,
			total_chargers, fault_rate, available_power, max_capacity, observed_at
		FROM station_history
		WHERE station_id = $1
		ORDER BY observed_at DESC
		LIMIT $2`,
		stationID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "history query")
	}
	return rows, nil
}

// HistoryRow is one sampled telemetry observation.
type HistoryRow struct {
	ID                int64     `db:"id"`
	StationID         string    `db:"station_id"`
	QueueLength       int       `db:"queue_length"`
	AvgServiceTime    float64   `db:"avg_service_time"`
	AvailableChargers int       `db:"available_chargers"`
	TotalChargers     int       `db:"total_chargers"`
	FaultRate         float64   `db:"fault_rate"`
	AvailablePower    float64   `db:"available_power"`
	MaxCapacity       float64   `db:"max_capacity"`
	ObservedAt        time.Time `db:"observed_at"`
}
