package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// SystemEvent is one operational event worth keeping beyond the log stream:
// stage failures, breaker trips, fallback activations.
type SystemEvent struct {
	ID        int64               `db:"id"`
	Severity  types.EventSeverity `db:"severity"`
	Component string              `db:"component"`
	Message   string              `db:"message"`
	Detail    Metadata            `db:"detail"`
	CreatedAt time.Time           `db:"created_at"`
}

// SystemEventRepository persists operational events.
type SystemEventRepository struct {
	db *sqlx.DB
}

// Record inserts an event. Callers treat failures as best-effort; losing an
// event record must never fail the operation that produced it.
func (r *SystemEventRepository) Record(ctx context.Context, severity types.EventSeverity, component, message string, detail Metadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_events (severity, component, message, detail)
		VALUES ($1, $2, $3, $4)`,
		severity, component, message, detail)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "event insert")
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (r *SystemEventRepository) Recent(ctx context.Context, limit int) ([]SystemEvent, error) {
	if limit < 1 {
		limit = 50
	}
	var events []SystemEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, severity, component, message, detail, created_at
		FROM system_events
		ORDER BY created_at DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "event query")
	}
	return events, nil
}
