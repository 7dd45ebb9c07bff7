/*
Package config loads and validates VoltGrid's runtime configuration.

Values resolve in three layers, each overriding the previous one:

 1. Built-in defaults (config.Default)
 2. An optional YAML file passed with --config
 3. Environment variables

The environment surface covers deployment knobs: API_PORT, BUS_BROKERS,
BUS_CLIENT_ID, BUS_GROUP_ID, STATE_STORE_ADDR, STATE_STORE_PASSWORD,
STATE_STORE_DB, STATE_STORE_KEY_PREFIX, FEATURE_CACHE_TTL, SCORE_CACHE_TTL,
PREDICTION_CACHE_TTL, SESSION_CACHE_TTL, DB_HOST, DB_PORT, DB_USER,
DB_PASSWORD, DB_NAME, DB_POOL_SIZE, WEIGHT_WAIT_TIME, WEIGHT_AVAILABILITY,
WEIGHT_RELIABILITY, WEIGHT_DISTANCE, WEIGHT_ENERGY_STABILITY,
CIRCUIT_BREAKER_THRESHOLD, CIRCUIT_BREAKER_TIMEOUT (ms), MODEL_SERVICE_URL,
ANTHROPIC_API_KEY, LOG_LEVEL, FEATURE_WORKERS, SCORE_WORKERS.

TTL variables are integer seconds to match operational convention; the YAML
form accepts Go duration strings:

	stateStore:
	  addr: cache.internal:6379
	  scoreTTL: 45s

Validate runs on every load and rejects configurations that cannot run
(non-positive port, negative weights, zero TTLs, inverted normalization
ranges), so a process never starts with a silently broken setup.
*/
package config
