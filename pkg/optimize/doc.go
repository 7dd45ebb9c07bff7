// Package optimize selects stations for one user from the global ranking.
//
// Rank fetches three times the requested limit from the score ranking and
// walks it in order, gating each candidate before pricing it:
//
//	health   - status must be selectable and the health score above the
//	           floor; stations with no health record pass
//	fault    - predicted fault probability must not exceed the cutoff;
//	           fallback predictions pass
//	features - a minimum charger availability, plus the caller's wait cap;
//	           a ranked station without features is stale and skipped
//	registry - the master record must exist (name, coordinates)
//	distance - the caller's radius cap, when given
//
// Survivors get adjustedScore = baseScore * exp(-d / (radius/3)), a decay
// that halves a score roughly every quarter of the allowed radius, then are
// resorted and ranked. When the ranking is empty (cold start) every
// registered station is returned as a neutral-score stub, nearest first.
//
// ApplyPreferences layers the user's soft preferences on top as score boosts
// rather than filters, so a preference can reorder but never empty a result.
package optimize
