package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voltgrid/voltgrid/pkg/errs"
)

// RecommendationLog is one served recommendation plus whatever the user did
// with it afterwards. selected_station_id and feedback arrive later, via the
// selection and feedback endpoints.
type RecommendationLog struct {
	ID                int64          `db:"id"`
	RequestID         string         `db:"request_id"`
	UserID            string         `db:"user_id"`
	StationIDs        pq.StringArray `db:"station_ids"`
	SelectedStationID *string        `db:"selected_station_id"`
	Feedback          *int           `db:"feedback"`
	Metadata          Metadata       `db:"metadata"`
	CreatedAt         time.Time      `db:"created_at"`
}

// RecommendationLogRepository persists served recommendations for later
// selection and feedback correlation.
type RecommendationLogRepository struct {
	db *sqlx.DB
}

// Create records the ranked station list served for a request.
func (r *RecommendationLogRepository) Create(ctx context.Context, requestID, userID string, stationIDs []string, meta Metadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recommendation_logs (request_id, user_id, station_ids, metadata)
		VALUES ($1, $2, $3, $4)`,
		requestID, userID, pq.StringArray(stationIDs), meta)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "recommendation log insert")
	}
	return nil
}

// RecordSelection marks which recommended station the user chose.
func (r *RecommendationLogRepository) RecordSelection(ctx context.Context, requestID, stationID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recommendation_logs
		SET selected_station_id = $2
		WHERE request_id = $1`,
		requestID, stationID)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "selection update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("recommendation", requestID)
	}
	return nil
}

// RecordFeedback stores a 1-5 rating for a served recommendation.
func (r *RecommendationLogRepository) RecordFeedback(ctx context.Context, requestID string, rating int) error {
	if rating < 1 || rating > 5 {
		return errs.Invalid("rating must be between 1 and 5", map[string]string{
			"rating": "must be between 1 and 5",
		})
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE recommendation_logs
		SET feedback = $2
		WHERE request_id = $1`,
		requestID, rating)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "feedback update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("recommendation", requestID)
	}
	return nil
}

// GetByRequestID loads one recommendation log entry.
func (r *RecommendationLogRepository) GetByRequestID(ctx context.Context, requestID string) (*RecommendationLog, error) {
	var rl RecommendationLog
	err := r.db.GetContext(ctx, &rl, `
		SELECT id, request_id, user_id, station_ids, selected_station_id,
			feedback, metadata, created_at
		FROM recommendation_logs
		WHERE request_id = $1`,
		requestID)
	if err != nil {
		return nil, notFound(err, "recommendation", requestID)
	}
	return &rl, nil
}
