// Package ingest is the front door of the pipeline: it validates submitted
// telemetry, health reports, grid status and user context, publishes each to
// its bus topic keyed by the natural entity key, and mirrors the record into
// the state store with a short TTL so it is readable immediately.
//
// Submissions are accepted, not processed: the ack only promises the record
// reached the bus. Optional fields are pointers in the submission schemas so
// absence (defaulted) is distinguishable from an explicit zero (validated).
// Cross-field invariants that tags cannot express, like availableChargers
// never exceeding totalChargers, are checked after defaults are applied.
//
// A publish failure rejects the submission; a mirror write failure does not,
// since the bus copy is the one the pipeline consumes.
package ingest
