// Package repository provides PostgreSQL persistence for VoltGrid's durable
// data: station master records, sampled telemetry history, users, request
// audit logs, served recommendations and operational events.
//
// # Architecture
//
// The package wraps a single sqlx pool shared by typed repositories:
//
//	Repositories
//	├── Stations            station master data and spatial prefilters
//	├── Requests            recommendation request lifecycle (pending → completed/failed)
//	├── RecommendationLogs  served rankings plus later selection and feedback
//	├── History             sampled telemetry observations
//	├── Events              operational events (breaker trips, fallbacks)
//	└── Users               lazily-registered user rows
//
// Hot-path reads (features, scores, rankings) never touch PostgreSQL; they
// live in the state store. The database holds what must survive a restart
// and what analytics needs later.
//
// # Usage
//
//	repos, err := repository.Open(ctx, cfg.Database, cfg.Pipeline.HistoryEvery)
//	if err != nil {
//	    return err
//	}
//	defer repos.Close()
//
//	if err := repos.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	station, err := repos.Stations.GetByID(ctx, "ST_101")
//
// # Error mapping
//
// sql.ErrNoRows becomes a NotFound domain error; every other database error
// becomes DependencyUnavailable so API handlers map it to 503 rather than
// blaming the caller.
//
// # History sampling
//
// Telemetry arrives far faster than it is worth persisting. HistoryRepository
// keeps an in-memory per-station counter and writes every Nth observation
// (PIPELINE_HISTORY_EVERY, default 10). The counter is not durable; a restart
// restarts the cadence, which is fine for trend data.
//
// # Schema
//
// Migrate applies the full DDL from schema.go with IF NOT EXISTS guards, so
// it is safe to run on every startup. recommendation_logs.station_ids is a
// TEXT[] column accessed through pq.StringArray; params, response, metadata
// and detail are JSONB.
//
// # Testing
//
// Tests run against go-sqlmock via NewWithDB, so no PostgreSQL instance is
// needed. Integration against a real database is exercised in deployment
// smoke tests, not here.
package repository
