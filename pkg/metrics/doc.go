/*
Package metrics registers cyroid's Prometheus metrics and exposes them over
HTTP for scraping.

Gauges (RangesTotal, VMsTotal, NetworksTotal, ArtifactsTotal) are kept
current by a Collector that polls pkg/repository on a fixed interval,
since BoltDB has no change-notification hook. Histograms and counters
(DeployDuration, VMStartDuration, CacheDownloadsTotal, and so on) are
registered here, with Timer/ObserveDuration helpers for recording them,
but no other package in this module records into them, so they are
exported at their zero values.

	reg := metrics.NewCollector(repo)
	reg.Start()
	defer reg.Stop()

	http.Handle("/metrics", metrics.Handler())

Package-level RegisterComponent/UpdateComponent and the HealthHandler,
ReadyHandler, LivenessHandler handlers track process-level liveness
separately from the domain gauges above.
*/
package metrics
