package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/voltgrid/voltgrid/pkg/errs"
)

// envelope is the wire format shared by every endpoint.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
	Meta    *meta      `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type meta struct {
	ProcessingTime float64 `json:"processingTime"`
	CacheHit       bool    `json:"cacheHit,omitempty"`
}

func newMeta(start time.Time) *meta {
	return &meta{ProcessingTime: float64(time.Since(start).Microseconds()) / 1000.0}
}

func respondData(w http.ResponseWriter, status int, data any, m *meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: m})
}

// respondError maps the error kind to its HTTP status. Internal detail stays
// out of the body for 5xx responses.
func respondError(w http.ResponseWriter, err error, m *meta) {
	status := errs.HTTPStatus(err)

	body := &errorBody{Kind: string(errs.KindOf(err))}
	switch status {
	case http.StatusInternalServerError:
		body.Message = "internal error"
	case http.StatusServiceUnavailable:
		body.Message = "dependency unavailable"
	default:
		body.Message = err.Error()
		body.Fields = errs.FieldsOf(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: body, Meta: m})
}
