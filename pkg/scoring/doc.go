// Package scoring implements the scoring stage: normalized station features
// in, a scalar utility score with component breakdown out.
//
// # Pipeline position
//
//	station.features ──► Runner ──► station.scores
//	                        │
//	                        ├──► statestore (station:score:{id}, TTL)
//	                        └──► ranking:stations (ZADD, same value as the score)
//
// The score cached at station:score:{id} and the member score in the ranking
// sorted set are always written with the same value, so a reader joining the
// two never observes a mismatch for one station.
//
// # Score composition
//
// Component scores are the normalized features themselves (identity mapping,
// rounded to 4 decimals). The base score is their weighted mean using the
// configured weights (default wait 0.25, availability 0.20, reliability 0.20,
// distance 0.20, energy 0.15). A zero weight sum yields a zero score.
//
// Model signals then apply multiplicative penalties:
//
//	predictedLoad > 0.8          ×(1 − 0.5·(load − 0.8))
//	fault risk high / medium     ×0.7 / ×0.9
//	predicted queue > 8          ×0.95
//	predicted wait > 20 min      ×0.95
//	recommender confidence < 0.4 ×0.9
//	maintenance action flagged   ×0.85
//
// The composed value is clamped to [0,1]. Signals are fetched best-effort and
// in parallel; a failed or fallback-marked prediction simply applies no
// penalty, so the stage keeps producing scores with every model down.
//
// # Confidence
//
// confidence = (1 − min(age/300, 1)·0.3) · completeness, where age is the
// feature record's age in seconds and completeness is 0.8 when the payload
// arrived without the full set of normalized fields.
package scoring
