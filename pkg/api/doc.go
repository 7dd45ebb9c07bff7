/*
Package api implements the HTTP surface: ingestion submissions,
recommendation queries, per-station state lookups and operational probes.

Every response uses one envelope:

	{
	    "success": true,
	    "data":    { ... },
	    "meta":    { "processingTime": 4.21, "cacheHit": true }
	}

	{
	    "success": false,
	    "error":   { "kind": "invalid_input", "message": "...", "fields": {...} },
	    "meta":    { "processingTime": 0.18 }
	}

processingTime is milliseconds spent inside the handler. cacheHit appears
only on cached lookups. Error kinds map to status codes through the errs
package: invalid_input 400, not_found 404, dependency_unavailable 503,
overload 429, everything else 500. Bodies of 5xx responses carry a generic
message; the detail goes to the log, not the client.

# Endpoints

Ingestion (all return 202; acceptance means the record reached the bus,
processing is asynchronous):

	POST /ingest/station       station telemetry
	POST /ingest/health        operator health report
	POST /ingest/grid          power-grid status
	POST /ingest/user-context  trip context

Recommendations:

	GET  /recommend                         query-parameter form
	POST /recommend                         JSON body form
	GET  /recommend/{requestId}             cached response, 404 after expiry
	POST /recommend/{requestId}/select      {stationId}
	POST /recommend/{requestId}/feedback    {rating 1..5}

Station state (read-through to the state store, 404 when absent or
expired):

	GET /station/{id}/score
	GET /station/{id}/health
	GET /station/{id}/features

Probes:

	GET /health     component health
	GET /ready      503 while critical dependencies are down or the
	                process is draining
	GET /metrics    Prometheus exposition

# Request Handling

The middleware chain is RequestID, RealIP, request logging, panic
recovery, then a per-request timeout from APIConfig.RequestTimeout. The
request log line and the voltgrid_api_* metrics are labeled by the chi
route pattern rather than the raw path so metric cardinality stays fixed.

GET /recommend parses query parameters syntactically (missing or
non-numeric values are 400s with per-field messages); value ranges are
enforced by the recommendation service so the GET and POST forms accept
and reject identically.

# Shutdown

Shutdown first flips /ready to 503, then drains in-flight requests until
the passed context expires. Load balancers stop routing to the node while
existing requests finish.
*/
package api
