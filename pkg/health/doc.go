/*
Package health probes the process's external dependencies.

Three checker flavors cover the dependency surface:

	PingChecker  state store and repository, through their Ping methods
	HTTPChecker  the model service's liveness route
	TCPChecker   bare reachability when nothing better exists

A Monitor runs registered checkers on an interval and folds results into a
Status per dependency. The status applies a retry threshold: a dependency
is reported unhealthy only after Retries consecutive failures, and recovers
on the first success. Results feed the process health registry (the
/health endpoint) and the voltgrid_dependency_up gauge.

	mon := health.NewMonitor(health.DefaultConfig())
	mon.Register("model-service", health.NewHTTPChecker(cfg.Models.ServiceURL+"/health"))
	mon.Start()
	defer mon.Stop()

The critical dependencies (state store, database, bus) are pinged by the
metrics collector on its own cadence; the Monitor exists for dependencies
where flapping matters, the model service foremost, since its breakers
already tolerate slow responses that should not flip process health.
*/
package health
