/*
Package types defines the core data structures used throughout VoltGrid.

This package contains all fundamental types that represent VoltGrid's domain
model: station telemetry, engineered features, scores, station master data,
predictions, recommendation requests and responses. These types cross every
boundary in the system: bus messages, state-store envelopes, repository rows,
and API payloads all serialize them as JSON.

# Architecture

The types package is the foundation of VoltGrid's data model. It defines:

  - Telemetry and derived signals (StationTelemetry, StationFeatures)
  - Scoring structures (StationScore, ComponentScores)
  - Station master data and health (Station, StationHealth)
  - Grid and user context observations (GridStatus, UserContext)
  - Prediction variants, one typed struct per model kind
  - Recommendation request/response shapes (RecommendationRequest,
    RankedStation, Recommendation)

All types are designed to be:
  - Serializable (JSON on the bus, in the state store, and over HTTP)
  - Flat and copyable (value semantics, pointers only for optional fields)
  - Self-documenting (field names mirror the wire format)

# Conventions

Timestamps are integer Unix seconds in every entity; the bus additionally
stamps each message with milliseconds at the transport layer. All exposed
numeric results are rounded to 4 decimal places with Round4. Normalized
values live in [0,1] and are oriented so higher is always better.

Enumerations use typed string constants:

	type HealthStatus string
	const (
	    HealthOperational HealthStatus = "operational"
	    HealthDegraded    HealthStatus = "degraded"
	)

Optional request fields use pointers so that zero is distinguishable from
absent:

	req := &types.RecommendationRequest{
	    UserID:   "u1",
	    Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	    Limit:    3,
	}
	if req.MaxDistance != nil { ... }

# Prediction Variants

Every external model kind has its own struct (LoadForecast, FaultPrediction,
QueueSurgeForecast, ...) carrying the model output, a confidence, and a
Fallback marker set when the value was synthesized because the model service
was unavailable. OperationalPredictions bundles the auxiliary kinds attached
to a ranked station; nil members are omitted from JSON, which is how a failed
auxiliary call degrades silently.

# State Machine

StationHealth.Status follows:

	operational ⇄ degraded → offline
	      ↓           ↓
	  maintenance  maintenance

Only operational and degraded stations are selectable by the optimizer
(HealthStatus.Selectable). A Recommendation is generated, stays addressable
in the cache for RecommendationTTL, then expires; lookups after expiry
return not-found.

# Integration Points

This package integrates with:

  - pkg/statestore: typed envelopes for every cache slot
  - pkg/bus: message payloads on every topic
  - pkg/repository: station master rows and request/recommendation logs
  - pkg/features, pkg/scoring: pipeline computation inputs/outputs
  - pkg/optimize, pkg/recommend: query-time composition
  - pkg/api: request decoding and response encoding

# See Also

  - pkg/features for the formulas producing StationFeatures
  - pkg/scoring for the weighted combination producing StationScore
  - pkg/predict for how prediction variants are fetched and cached
*/
package types
