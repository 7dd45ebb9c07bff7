/*
Package statestore implements the shared state store on Redis.

Every pipeline stage and the request path share this store: the feature,
score, telemetry, health and prediction caches, the per-user session state,
assembled recommendation responses, the global station ranking, operational
counters, and advisory locks. All entries are JSON envelopes written as
full-record replaces with a TTL; last-writer-wins is the concurrency policy
for every slot.

# Key Layout

	station:features:{id}      StationFeatures       feature TTL (O(30s))
	station:score:{id}         StationScore          score TTL
	station:telemetry:{id}     StationTelemetry      feature TTL
	station:health:{id}        StationHealth         health TTL
	grid:status:{gridId}       GridStatus            health TTL
	prediction:{kind}:{id}     per-kind variant      prediction TTL
	user:context:{userId}      UserContext           session TTL
	user:session:{sessionId}   UserContext           session TTL
	recommendation:{requestId} Recommendation        5 minutes
	ranking:stations           sorted set            no TTL
	metrics:counter:{name}     integer               no TTL
	lock:{resource}            token                 caller-supplied TTL

An optional key prefix from configuration namespaces multiple deployments on
one server.

# Ranking

UpdateRanking is a single ZADD, so each write atomically replaces the
station's previous score. TopRanked reads descending with scores; readers may
observe scores computed at different times for different stations, which is
accepted bounded staleness.

# Read Semantics

Misses return a NotFound error. Corrupt entries (JSON that no longer decodes)
also surface as NotFound after a warning log: for the pipeline an undecodable
cache entry and an expired one are the same event, and the next write heals
the slot. Cache hits and misses per slot are surfaced through pkg/metrics.

# Locks

AcquireLock is SET NX PX with a random token. ReleaseLock runs a small Lua
script that deletes the key only when the caller's token still matches, so a
lock that expired and was re-acquired by someone else cannot be released by
the old holder. The core pipeline does not take locks; the primitive exists
for operational jobs (rebalance planning) that must not run twice.

# Testing

Tests run against miniredis, a real Redis protocol implementation in-process,
including TTL expiry via clock advance and the Lua release script.
*/
package statestore
