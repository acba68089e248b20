package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RangesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyroid_ranges_total",
			Help: "Total number of ranges by status",
		},
		[]string{"status"},
	)

	VMsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyroid_vms_total",
			Help: "Total number of VMs by status and vm_type",
		},
		[]string{"status", "vm_type"},
	)

	NetworksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyroid_networks_total",
			Help: "Total number of provisioned networks",
		},
	)

	ArtifactsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyroid_artifacts_total",
			Help: "Total number of registered artifacts",
		},
	)

	DeployDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyroid_deploy_duration_seconds",
			Help:    "Time taken to deploy a range, by outcome",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"outcome"},
	)

	TeardownDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyroid_teardown_duration_seconds",
			Help:    "Time taken to tear down a range",
			Buckets: prometheus.DefBuckets,
		},
	)

	VMStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyroid_vm_start_duration_seconds",
			Help:    "Time taken to start a VM",
			Buckets: prometheus.DefBuckets,
		},
	)

	VMStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyroid_vm_stop_duration_seconds",
			Help:    "Time taken to stop a VM",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyroid_snapshot_duration_seconds",
			Help:    "Time taken to create or restore a snapshot",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CacheBytesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyroid_cache_bytes_in_flight",
			Help: "Total bytes currently being downloaded by the cache manager",
		},
	)

	CacheDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyroid_cache_downloads_total",
			Help: "Total cache downloads by outcome",
		},
		[]string{"outcome"},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cyroid_cache_evictions_total",
			Help: "Total number of cache entries evicted after their grace window",
		},
	)

	InjectsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyroid_injects_executed_total",
			Help: "Total MSEL injects executed by outcome",
		},
		[]string{"outcome"},
	)

	ArtifactPlacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyroid_artifact_placements_total",
			Help: "Total artifact placements by outcome",
		},
		[]string{"outcome"},
	)

	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyroid_sessions_active",
			Help: "Active interactive sessions by kind (console, vnc, status)",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(RangesTotal)
	prometheus.MustRegister(VMsTotal)
	prometheus.MustRegister(NetworksTotal)
	prometheus.MustRegister(ArtifactsTotal)
	prometheus.MustRegister(DeployDuration)
	prometheus.MustRegister(TeardownDuration)
	prometheus.MustRegister(VMStartDuration)
	prometheus.MustRegister(VMStopDuration)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(CacheBytesInFlight)
	prometheus.MustRegister(CacheDownloadsTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(InjectsExecutedTotal)
	prometheus.MustRegister(ArtifactPlacementsTotal)
	prometheus.MustRegister(SessionsActive)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
