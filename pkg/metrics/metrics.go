package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	MessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_messages_consumed_total",
			Help: "Total number of bus messages consumed by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	FeaturesComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voltgrid_features_computed_total",
			Help: "Total number of feature records computed",
		},
	)

	ScoresComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voltgrid_scores_computed_total",
			Help: "Total number of station scores computed",
		},
	)

	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltgrid_stage_latency_seconds",
			Help:    "Per-message processing latency by pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Ranking metrics
	RankingSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltgrid_ranking_stations",
			Help: "Number of stations currently in the global ranking",
		},
	)

	// Cache metrics
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_cache_hits_total",
			Help: "Total number of state store cache hits by cache",
		},
		[]string{"cache"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_cache_misses_total",
			Help: "Total number of state store cache misses by cache",
		},
		[]string{"cache"},
	)

	// Prediction gateway metrics
	PredictionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_prediction_calls_total",
			Help: "Total number of model service calls by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voltgrid_breaker_state",
			Help: "Circuit breaker state per model (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"model"},
	)

	NarrationFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voltgrid_narration_fallbacks_total",
			Help: "Total number of explanations served by the rule-based fallback",
		},
	)

	// Recommendation metrics
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_recommendations_total",
			Help: "Total number of recommendation requests by status",
		},
		[]string{"status"},
	)

	RecommendationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltgrid_recommendation_latency_seconds",
			Help:    "End-to-end recommendation handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_api_requests_total",
			Help: "Total number of API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltgrid_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Bus metrics
	BusPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_bus_published_total",
			Help: "Total number of messages published by topic",
		},
		[]string{"topic"},
	)

	BusPublishErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgrid_bus_publish_errors_total",
			Help: "Total number of failed publishes by topic",
		},
		[]string{"topic"},
	)

	// Dependency health gauges, sampled by the collector
	DependencyUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voltgrid_dependency_up",
			Help: "Whether a dependency responds to pings (1 = up, 0 = down)",
		},
		[]string{"dependency"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(MessagesConsumed)
	prometheus.MustRegister(FeaturesComputed)
	prometheus.MustRegister(ScoresComputed)
	prometheus.MustRegister(StageLatency)
	prometheus.MustRegister(RankingSize)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PredictionCalls)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(NarrationFallbacks)
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(RecommendationLatency)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(BusPublished)
	prometheus.MustRegister(BusPublishErrors)
	prometheus.MustRegister(DependencyUp)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
