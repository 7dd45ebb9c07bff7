package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/voltgrid/voltgrid/pkg/errs"
)

// User is a registered account row. Requests may arrive for users the
// database has never seen, so Ensure upserts lazily rather than requiring a
// registration step.
type User struct {
	ID          string    `db:"id"`
	VehicleType string    `db:"vehicle_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// UserRepository manages lazily-registered user rows.
type UserRepository struct {
	db *sqlx.DB
}

// Ensure creates the user row if missing and refreshes its vehicle type.
// An empty vehicleType never overwrites a known one.
func (r *UserRepository) Ensure(ctx context.Context, userID, vehicleType string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, vehicle_type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			vehicle_type = CASE WHEN EXCLUDED.vehicle_type = '' THEN users.vehicle_type ELSE EXCLUDED.vehicle_type END,
			updated_at = now()`,
		userID, vehicleType)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "user upsert")
	}
	return nil
}

// GetByID loads one user row.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, vehicle_type, created_at, updated_at FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return &u, nil
}
