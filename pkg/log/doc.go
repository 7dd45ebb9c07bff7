/*
Package log provides structured logging for VoltGrid using zerolog.

A single process-wide logger is initialized once at startup; every
long-lived component derives a child logger stamped with its name.
Output is JSON in production and console-rendered for local development,
with severity filtering applied globally.

# Usage

Initializing the logger:

	// JSON output (production)
	log.Init(log.Config{Level: "info", JSON: true})

	// Console output (development)
	log.Init(log.Config{Level: "debug", JSON: false})

Unknown or empty levels fall back to info. Before Init runs the global
logger discards everything, so packages may build child loggers at
construction time in any order.

Structured logging:

	log.Logger.Info().
		Str("station_id", "ST_101").
		Float64("overall_score", 0.8412).
		Msg("score updated")

	log.Logger.Error().
		Err(err).
		Str("topic", "station.features").
		Msg("publish failed")

Component loggers:

	logger := log.WithComponent("scorer")
	logger.Info().Msg("starting workers")
	logger.Debug().Str("station_id", "ST_101").Msg("features consumed")

# Output Examples

JSON format (production):

	{"level":"info","component":"feature-engineer","station_id":"ST_101","time":"2026-08-25T10:30:00Z","message":"features computed"}
	{"level":"error","component":"predict","model_id":"fault-detector","error":"context deadline exceeded","time":"2026-08-25T10:30:02Z","message":"model call failed"}

Console format (development):

	10:30:00 INF features computed component=feature-engineer station_id=ST_101
	10:30:02 ERR model call failed component=predict model_id=fault-detector error="context deadline exceeded"

# Integration Points

This package integrates with:

  - pkg/pipeline: consumer lifecycle and drain progress
  - pkg/features, pkg/scoring: per-message processing logs at debug level
  - pkg/predict, pkg/narrate: gateway calls, breaker transitions, fallbacks
  - pkg/api: request logging middleware
  - pkg/bus, pkg/statestore, pkg/repository: connection lifecycle

# Best Practices

Do:
  - Use info level in production
  - Use structured fields (.Str, .Float64, .Err) for queryable data
  - Create component loggers at construction time
  - Include station_id / request_id context on pipeline logs

Don't:
  - Log credentials (state store password, LLM API key)
  - Log per-message at info level in high-volume consumers

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
