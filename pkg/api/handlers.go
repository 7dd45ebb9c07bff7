package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/ingest"
	"github.com/voltgrid/voltgrid/pkg/types"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Wrap(errs.KindInvalidInput, err, "invalid request body")
	}
	return nil
}

func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var sub ingest.TelemetrySubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	ack, err := s.ingestor.SubmitTelemetry(r.Context(), sub)
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusAccepted, ack, newMeta(start))
}

func (s *Server) handleIngestHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var sub ingest.HealthSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	ack, err := s.ingestor.SubmitHealth(r.Context(), sub)
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusAccepted, ack, newMeta(start))
}

func (s *Server) handleIngestGrid(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var sub ingest.GridSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	ack, err := s.ingestor.SubmitGridStatus(r.Context(), sub)
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusAccepted, ack, newMeta(start))
}

func (s *Server) handleIngestUserContext(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var sub ingest.ContextSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	ack, err := s.ingestor.SubmitUserContext(r.Context(), sub)
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusAccepted, ack, newMeta(start))
}

// handleRecommendQuery serves GET /recommend. Query parameters are parsed
// syntactically here; range rules are enforced by the recommendation
// service so GET and POST reject identically.
func (s *Server) handleRecommendQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := parseRecommendQuery(r.URL.Query())
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	s.serveRecommendation(w, r, req, start)
}

func (s *Server) handleRecommendBody(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	s.serveRecommendation(w, r, req, start)
}

func (s *Server) serveRecommendation(w http.ResponseWriter, r *http.Request, req types.RecommendationRequest, start time.Time) {
	rec, err := s.recs.Recommend(r.Context(), req)
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, rec, newMeta(start))
}

func (s *Server) handleRecommendLookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec, err := s.recs.Lookup(r.Context(), chi.URLParam(r, "requestId"))
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	m := newMeta(start)
	m.CacheHit = true
	respondData(w, http.StatusOK, rec, m)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body struct {
		StationID string `json:"stationId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	if err := s.recs.RecordSelection(r.Context(), chi.URLParam(r, "requestId"), body.StationID); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "recorded"}, newMeta(start))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body struct {
		Rating int `json:"rating"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	if err := s.recs.RecordFeedback(r.Context(), chi.URLParam(r, "requestId"), body.Rating); err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "recorded"}, newMeta(start))
}

func (s *Server) handleStationScore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	score, err := s.store.GetScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, score, newMeta(start))
}

func (s *Server) handleStationHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	health, err := s.store.GetHealth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, health, newMeta(start))
}

func (s *Server) handleStationFeatures(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	features, err := s.store.GetFeatures(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, newMeta(start))
		return
	}
	respondData(w, http.StatusOK, features, newMeta(start))
}

// parseRecommendQuery builds a request from GET query parameters. Only
// syntax is checked here: missing required params and unparseable numbers
// are invalid input, value ranges belong to the service.
func parseRecommendQuery(q url.Values) (types.RecommendationRequest, error) {
	fields := map[string]string{}

	req := types.RecommendationRequest{
		UserID:      q.Get("userId"),
		VehicleType: q.Get("vehicleType"),
	}
	if req.UserID == "" {
		fields["userId"] = "is required"
	}

	req.Location.Latitude = requiredFloat(q, "lat", fields)
	req.Location.Longitude = requiredFloat(q, "lon", fields)

	if v := q.Get("chargerType"); v != "" {
		req.PreferredChargerType = types.ChargerType(v)
	}
	req.BatteryLevel = optionalFloat(q, "batteryLevel", fields)
	req.MaxWaitTime = optionalFloat(q, "maxWaitTime", fields)
	req.MaxDistance = optionalFloat(q, "maxDistance", fields)

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "must be an integer"
		} else {
			req.Limit = n
		}
	}
	req.PreferNearby = q.Get("preferNearby") == "true"
	req.PreferReliable = q.Get("preferReliable") == "true"

	if len(fields) > 0 {
		return req, errs.Invalid("validation failed", fields)
	}
	return req, nil
}

func requiredFloat(q url.Values, key string, fields map[string]string) float64 {
	v := q.Get(key)
	if v == "" {
		fields[key] = "is required"
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fields[key] = "must be a number"
		return 0
	}
	return f
}

func optionalFloat(q url.Values, key string, fields map[string]string) *float64 {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fields[key] = "must be a number"
		return nil
	}
	return &f
}
