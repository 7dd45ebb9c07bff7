// Package predict is the single gateway to the external model service.
//
// Every prediction the backend consumes (load, fault, traffic, surge, and
// the operational planning set) flows through one Gateway. Three layers sit
// between a caller and the HTTP round trip:
//
//	cache    - fresh predictions are written to the state store with a TTL
//	           and served from there while they live
//	breaker  - one circuit breaker per model kind; repeated failures open
//	           the breaker and shed calls to that model
//	fallback - an open breaker or a failed call yields the kind's
//	           deterministic zero-value variant, marked Fallback, with a
//	           nil error
//
// Callers therefore never see a model outage as an error. The only error a
// typed fetcher returns is context cancellation, which is also the only
// failure the breaker does not count. Fallback values are never cached and
// never republished, so a recovered model is consulted on the next call.
//
// Typed fetchers are defensive about model output shape: a fault model may
// return a class index in prediction and the positive-class probability in
// probabilities[1], so probabilities are preferred and results clamped.
//
// FetchAll fans the auxiliary planning models out across a set of ranked
// stations under the configured parallelism bound, attaching only fresh
// results and sharing the per-region traffic forecast.
package predict
