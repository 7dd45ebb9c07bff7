/*
Package client provides a Go client library for the VoltGrid HTTP API.

The client wraps the enveloped JSON endpoints with typed methods covering
ingestion, recommendation queries and per-station state lookups, plus the
operational probes. One Client is safe for concurrent use and holds no
connection state beyond the standard library's transport pooling.

# Usage

Submitting telemetry and requesting a recommendation:

	cli := client.New("http://localhost:3000")

	ack, err := cli.SubmitTelemetry(ctx, ingest.TelemetrySubmission{
		StationID:         "ST_101",
		AvailableChargers: &available,
		QueueLength:       &queue,
	})
	if err != nil {
		return err
	}

	rec, err := cli.Recommend(ctx, types.RecommendationRequest{
		UserID:   "user_1",
		Location: types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
	})
	if err != nil {
		return err
	}
	fmt.Println(rec.Explanation)

Recording the user's reaction to a served result:

	if err := cli.Select(ctx, rec.RequestID, rec.Stations[0].StationID); err != nil {
		return err
	}
	if err := cli.Feedback(ctx, rec.RequestID, 5); err != nil {
		return err
	}

# Error Handling

Errors carry the node's classification across the wire. A rejected
submission comes back as InvalidInput with the same per-field messages the
server produced, an expired lookup as NotFound, an unreachable node as
DependencyUnavailable:

	rec, err := cli.Lookup(ctx, requestID)
	switch {
	case errs.Is(err, errs.KindNotFound):
		// expired, recompute
	case errs.Is(err, errs.KindDependencyUnavailable):
		// node down, retry elsewhere
	}

	if fields := errs.FieldsOf(err); fields != nil {
		// per-field validation messages, keyed by wire name
	}

# Probes

Healthy and Ready map the node's /health and /ready endpoints onto error
values, for load balancer integrations and smoke tests. Ready fails while a
critical dependency is down and during shutdown drain, Healthy aggregates
every registered component.
*/
package client
