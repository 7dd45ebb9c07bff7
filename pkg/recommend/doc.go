// Package recommend orchestrates one recommendation request end to end.
//
// Recommend runs the query path: validate the request, record a pending
// request row, rank candidates via the optimizer, decorate the ranked rows
// with whatever the auxiliary operational models currently have, apply the
// caller's soft preferences, and narrate the result. The assembled response
// is then persisted on three tracks with different guarantees:
//
//   - the request row is marked completed or failed (failure reasons keep
//     the real cause; callers get a sanitized error)
//   - the served station list is logged for selection/feedback joins
//   - the full response is cached under its request id and published on the
//     recommendations topic
//
// Only the ranking step can fail a request. Once a result exists, log and
// cache writes are best effort: a dead database delays analytics but never
// turns a computed recommendation into a user-facing error.
//
// Lookup serves the cached response while its TTL lives, which is what makes
// the select and feedback endpoints cheap: they reference the request id
// without recomputing anything.
package recommend
