/*
Package metrics provides Prometheus instrumentation and process health
tracking for VoltGrid.

All metric families are package-level variables registered in init() and
exported under the voltgrid_ prefix. The package also carries a lightweight
component-health registry feeding /health and /ready, and a Collector that
samples gauge metrics on a fixed interval.

# Metric Families

Pipeline:
  - voltgrid_messages_consumed_total{topic,outcome}: consumer throughput;
    outcome is ok, skipped or retryable
  - voltgrid_features_computed_total, voltgrid_scores_computed_total
  - voltgrid_stage_latency_seconds{stage}: per-message processing time
  - voltgrid_ranking_stations: current global ranking cardinality

Caching:
  - voltgrid_cache_hits_total{cache}, voltgrid_cache_misses_total{cache}:
    per-slot state store cache effectiveness (features, score, prediction,
    recommendation)

Gateways:
  - voltgrid_prediction_calls_total{model,outcome}: outcome is success,
    failure, fallback or cache_hit
  - voltgrid_breaker_state{model}: 0 closed, 1 half-open, 2 open
  - voltgrid_narration_fallbacks_total

Serving:
  - voltgrid_recommendations_total{status}, voltgrid_recommendation_latency_seconds
  - voltgrid_api_requests_total{method,path,status},
    voltgrid_api_request_duration_seconds{method,path}

Transport:
  - voltgrid_bus_published_total{topic}, voltgrid_bus_publish_errors_total{topic}
  - voltgrid_dependency_up{dependency}: sampled ping results

# Usage

Counting and timing:

	timer := metrics.NewTimer()
	// ... process message ...
	timer.ObserveDurationVec(metrics.StageLatency, "features")
	metrics.MessagesConsumed.WithLabelValues("station.telemetry", "ok").Inc()

Component health:

	metrics.RegisterComponent("statestore", true, "")
	metrics.UpdateComponent("bus", false, "reconnecting")

Collector wiring at startup:

	collector := metrics.NewCollector(store, map[string]metrics.Pinger{
	    "statestore": store,
	    "database":   repo,
	    "bus":        producer,
	})
	collector.Start()
	defer collector.Stop()

# Readiness Semantics

GetReadiness requires every critical dependency (statestore, database, bus)
to be registered and healthy. A process that has not finished startup reports
not_ready, which keeps load balancers away until the pipeline can actually
serve.

# Integration Points

  - pkg/api mounts Handler() at /metrics and uses the API families
  - pkg/bus, pkg/statestore increment transport and cache families
  - pkg/predict drives breaker and prediction families
  - pkg/recommend drives recommendation families
  - cmd/voltgrid starts the Collector with live pingers
*/
package metrics
