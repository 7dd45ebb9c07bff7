package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// RequestLogRepository tracks the lifecycle of recommendation requests.
// Every request starts pending and ends completed or failed, so the table
// doubles as an audit trail for rejected and timed-out requests.
type RequestLogRepository struct {
	db *sqlx.DB
}

// CreatePending records a newly accepted request before any processing runs.
func (r *RequestLogRepository) CreatePending(ctx context.Context, requestID string, req *types.RecommendationRequest) error {
	params, err := json.Marshal(req)
	if err != nil {
		return errs.Wrap(errs.KindInternalFailure, err, "encode request params")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_requests (id, user_id, latitude, longitude, params, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		requestID, req.UserID, req.Location.Latitude, req.Location.Longitude,
		params, types.RequestPending)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "request insert")
	}
	return nil
}

// MarkCompleted stores the response payload and the measured processing time.
func (r *RequestLogRepository) MarkCompleted(ctx context.Context, requestID string, rec *types.Recommendation, processingMs int64) error {
	response, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.KindInternalFailure, err, "encode response")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_requests
		SET status = $2, response = $3, processing_ms = $4, updated_at = now()
		WHERE id = $1`,
		requestID, types.RequestCompleted, response, processingMs)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "request complete")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("request", requestID)
	}
	return nil
}

// MarkFailed records the terminal error for a request that could not be served.
func (r *RequestLogRepository) MarkFailed(ctx context.Context, requestID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_requests
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		requestID, types.RequestFailed, reason)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "request fail")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("request", requestID)
	}
	return nil
}
