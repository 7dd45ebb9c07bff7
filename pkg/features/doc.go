// Package features implements the feature engineering stage: raw station
// telemetry in, normalized per-station features out.
//
// # Pipeline position
//
//	station.telemetry ──► Runner ──► station.features
//	                         │
//	                         └──► statestore (station:features:{id}, short TTL)
//
// Engineer holds the pure math; Runner handles decode, store and publish.
//
// # Feature derivation
//
//	effectiveWaitTime        = queueLength × avgServiceTime   (minutes)
//	stationReliabilityScore  = 1 − faultRate
//	energyStabilityIndex     = availablePower / maxCapacity   (0 when capacity unknown)
//	chargerAvailabilityRatio = availableChargers / totalChargers
//	distancePenalty          = nominal ETA × traffic factor   (per-user distance is query-time)
//
// Normalization maps each raw value onto [0,1] with the configured ranges.
// Wait time and distance are inverted so that lower raw values normalize
// higher. Values outside the range clamp; a degenerate range (min = max)
// maps everything to 0.5. Exposed numbers are rounded to 4 decimals.
//
// # Failure policy
//
// Undecodable payloads and telemetry without a stationId or timestamp are
// logged and skipped; the stream must keep moving past poison messages.
// State-store and publish failures return a retryable outcome so the bus
// redelivers. Out-of-order telemetry is accepted, last writer wins.
package features
