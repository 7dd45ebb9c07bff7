package api

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/ingest"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// Ingestor accepts raw submissions on behalf of the ingestion pipeline.
type Ingestor interface {
	SubmitTelemetry(ctx context.Context, sub ingest.TelemetrySubmission) (ingest.Ack, error)
	SubmitHealth(ctx context.Context, sub ingest.HealthSubmission) (ingest.Ack, error)
	SubmitGridStatus(ctx context.Context, sub ingest.GridSubmission) (ingest.Ack, error)
	SubmitUserContext(ctx context.Context, sub ingest.ContextSubmission) (ingest.Ack, error)
}

// Recommender serves and tracks recommendation requests.
type Recommender interface {
	Recommend(ctx context.Context, req types.RecommendationRequest) (types.Recommendation, error)
	Lookup(ctx context.Context, requestID string) (types.Recommendation, error)
	RecordSelection(ctx context.Context, requestID, stationID string) error
	RecordFeedback(ctx context.Context, requestID string, rating int) error
}

// Server is the HTTP front door: ingestion submissions, recommendation
// queries, per-station state lookups and operational probes.
type Server struct {
	cfg      config.APIConfig
	ingestor Ingestor
	recs     Recommender
	store    statestore.Store
	logger   zerolog.Logger

	http     *http.Server
	draining atomic.Bool
}

// NewServer creates the API server. The statestore backs the per-station
// read endpoints directly; everything else goes through the services.
func NewServer(cfg config.APIConfig, ingestor Ingestor, recs Recommender, store statestore.Store) *Server {
	s := &Server{
		cfg:      cfg,
		ingestor: ingestor,
		recs:     recs,
		store:    store,
		logger:   log.WithComponent("api"),
	}
	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/station", s.handleIngestTelemetry)
		r.Post("/health", s.handleIngestHealth)
		r.Post("/grid", s.handleIngestGrid)
		r.Post("/user-context", s.handleIngestUserContext)
	})

	r.Route("/recommend", func(r chi.Router) {
		r.Get("/", s.handleRecommendQuery)
		r.Post("/", s.handleRecommendBody)
		r.Get("/{requestId}", s.handleRecommendLookup)
		r.Post("/{requestId}/select", s.handleSelect)
		r.Post("/{requestId}/feedback", s.handleFeedback)
	})

	r.Route("/station/{id}", func(r chi.Router) {
		r.Get("/score", s.handleStationScore)
		r.Get("/health", s.handleStationHealth)
		r.Get("/features", s.handleStationFeatures)
	})

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	return r
}

// requestLogger logs one line per request and feeds the API metrics. The
// route pattern, not the raw path, labels the metric to keep cardinality
// bounded.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		elapsed := time.Since(start)

		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())

		evt := s.logger.Info()
		if ww.Status() >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// handleReady reports 503 while shutting down so load balancers stop
// routing here before in-flight requests drain.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"shutting_down"}`))
		return
	}
	metrics.ReadyHandler()(w, r)
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr()).Msg("http api listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown flips the readiness probe, then drains in-flight requests until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.logger.Info().Msg("http api shutting down")
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
