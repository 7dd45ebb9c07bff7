package repository

// Schema is the durable store DDL. Applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS stations (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	latitude       DOUBLE PRECISION NOT NULL,
	longitude      DOUBLE PRECISION NOT NULL,
	total_chargers INTEGER NOT NULL DEFAULT 0,
	charger_types  JSONB NOT NULL DEFAULT '[]',
	max_capacity   DOUBLE PRECISION NOT NULL DEFAULT 0,
	region         TEXT NOT NULL DEFAULT '',
	grid_id        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_stations_location ON stations (latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_stations_region   ON stations (region);
CREATE INDEX IF NOT EXISTS idx_stations_grid     ON stations (grid_id);

CREATE TABLE IF NOT EXISTS station_history (
	id                 BIGSERIAL PRIMARY KEY,
	station_id         TEXT NOT NULL,
	queue_length       INTEGER NOT NULL,
	avg_service_time   DOUBLE PRECISION NOT NULL,
	available_chargers INTEGER NOT NULL,
	total_chargers     INTEGER NOT NULL,
	fault_rate         DOUBLE PRECISION NOT NULL,
	available_power    DOUBLE PRECISION NOT NULL,
	max_capacity       DOUBLE PRECISION NOT NULL,
	observed_at        TIMESTAMPTZ NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_station_history_station ON station_history (station_id, observed_at);

CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	vehicle_type TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_requests (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	latitude      DOUBLE PRECISION NOT NULL,
	longitude     DOUBLE PRECISION NOT NULL,
	params        JSONB NOT NULL DEFAULT '{}',
	response      JSONB,
	status        TEXT NOT NULL,
	error         TEXT,
	processing_ms INTEGER,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_user_requests_user ON user_requests (user_id, created_at);

CREATE TABLE IF NOT EXISTS recommendation_logs (
	id                  BIGSERIAL PRIMARY KEY,
	request_id          TEXT NOT NULL UNIQUE,
	user_id             TEXT NOT NULL,
	station_ids         TEXT[] NOT NULL,
	selected_station_id TEXT,
	feedback            INTEGER,
	metadata            JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_recommendation_logs_user ON recommendation_logs (user_id, created_at);

CREATE TABLE IF NOT EXISTS system_events (
	id         BIGSERIAL PRIMARY KEY,
	severity   TEXT NOT NULL,
	component  TEXT NOT NULL,
	message    TEXT NOT NULL,
	detail     JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_system_events_severity ON system_events (severity, created_at);
`
