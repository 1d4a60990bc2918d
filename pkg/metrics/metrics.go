package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// System metrics: per-unit process health (spec.md canic_metrics_system).
	UnitsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canic_units_total",
			Help: "Total number of registered units by role",
		},
		[]string{"role"},
	)

	StableBytesUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canic_stable_bytes_used",
			Help: "Bytes currently used across stable-store regions",
		},
	)

	// ICC (inter-canister call) metrics (canic_metrics_icc).
	ICCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_icc_requests_total",
			Help: "Total cross-unit RPC calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ICCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canic_icc_request_duration_seconds",
			Help:    "Cross-unit RPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// HTTP metrics for the endpoint surface (canic_metrics_http).
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_http_requests_total",
			Help: "Total endpoint-surface calls by method and status",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canic_http_request_duration_seconds",
			Help:    "Endpoint-surface call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Timer metrics (canic_metrics_timer): scheduler guarded-slot activity.
	TimerFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_timer_fires_total",
			Help: "Total scheduled-task firings by task name",
		},
		[]string{"task"},
	)

	TimerActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canic_timer_active",
			Help: "Whether a guarded timer slot is currently occupied (1/0)",
		},
		[]string{"task"},
	)

	// Access metrics (canic_metrics_access): root-only guard outcomes.
	AccessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_access_denied_total",
			Help: "Total requests rejected by a root-only or caller guard",
		},
		[]string{"endpoint", "reason"},
	)

	// Perf metrics (canic_metrics_perf): placement/lifecycle operation cost.
	PlacementPlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canic_placement_plan_duration_seconds",
			Help:    "Time taken to compute a placement Plan",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrchestratorCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canic_orchestrator_create_duration_seconds",
			Help:    "Time taken by the Create workflow end to end",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	OrchestratorUpgradeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canic_orchestrator_upgrade_duration_seconds",
			Help:    "Time taken by the Upgrade workflow end to end",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	CascadeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canic_cascade_duration_seconds",
			Help:    "Time taken to fan a cascade out to direct children",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	CascadeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_cascade_failures_total",
			Help: "Total per-child cascade delivery failures",
		},
		[]string{"variant"},
	)

	// Endpoint health (canic_metrics_endpoint_health).
	EndpointHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canic_endpoint_health",
			Help: "Last observed health of an endpoint (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// Placement/capability domain gauges.
	ShardsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canic_shards_total",
			Help: "Total shard entries by pool and lifecycle phase",
		},
		[]string{"pool", "phase"},
	)

	ReserveSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canic_reserve_size",
			Help: "Current number of units held in the reserve",
		},
	)

	PoolStatusTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canic_pool_status_total",
			Help: "Total canister-pool entries by status",
		},
		[]string{"status"},
	)

	DelegationsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_delegations_issued_total",
			Help: "Total delegation certificates issued, by outcome",
		},
		[]string{"outcome"},
	)

	TokensMintedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canic_tokens_minted_total",
			Help: "Total delegated tokens minted, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		UnitsTotal,
		StableBytesUsed,
		ICCRequestsTotal,
		ICCRequestDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TimerFiresTotal,
		TimerActive,
		AccessDeniedTotal,
		PlacementPlanDuration,
		OrchestratorCreateDuration,
		OrchestratorUpgradeDuration,
		CascadeDuration,
		CascadeFailuresTotal,
		EndpointHealth,
		ShardsTotal,
		ReserveSize,
		PoolStatusTotal,
		DelegationsIssuedTotal,
		TokensMintedTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing an operation and recording it to a
// histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the Timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
