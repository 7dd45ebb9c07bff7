/*
Package pipeline supervises the streaming stages of one node.

A Supervisor owns four consumer stages, each its own consumer group on the
bus so it can be scaled and restarted independently:

	features   station.telemetry  -> engineered features (store + bus)
	scoring    station.features   -> scores and the global ranking
	context    user.context       -> user:context mirror in the state store
	history    station.telemetry  -> sampled rows in station_history

The features and history stages are separate groups on the same topic: each
gets every telemetry message, so sampling cadence never depends on how far
the feature stage has read.

Start launches all stages and returns; the stages block inside their
consumers until the context is cancelled. Stop cancels, then waits for
in-flight messages to finish within the drain budget. On budget overrun the
process abandons the work and lets unacknowledged messages redeliver to the
next group member, which is the at-least-once contract of the bus doing its
job rather than an error to recover from.

	sup := pipeline.New(cfg, pipeline.Deps{
	    Client:      client,
	    Store:       store,
	    Producer:    producer,
	    Predictions: gateway,
	    Sampler:     repos.History,
	})
	sup.Start(ctx)
	defer sup.Stop()
*/
package pipeline
