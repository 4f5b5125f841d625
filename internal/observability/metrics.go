package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the liquidator.
type Metrics struct {
	// Fetcher metrics
	RPCCallLatency    *prometheus.HistogramVec
	ScanPartitions    prometheus.Counter
	AccountsFetched   *prometheus.CounterVec

	// Cache metrics
	CachedMarginfiAccounts prometheus.Gauge
	CachedBanks            prometheus.Gauge
	CacheClockSlot         prometheus.Gauge

	// Snapshot metrics
	SnapshotsPersisted prometheus.Counter
	SnapshotFailures   prometheus.Counter
	SnapshotDuration   prometheus.Histogram
	SnapshotSizeBytes  prometheus.Gauge

	// Geyser metrics
	GeyserQueueDepth       prometheus.Gauge
	GeyserUpdatesProcessed *prometheus.CounterVec

	// Liquidation metrics
	AccountsEvaluated    prometheus.Counter
	LiquidatableAccounts prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marginfi_liquidator"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ScanPartitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "scan_partitions_total",
			Help:      "Total number of scan-limit prefix partition splits",
		}),
		AccountsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "accounts_fetched_total",
			Help:      "Total number of program accounts fetched by kind",
		}, []string{"kind"}),

		CachedMarginfiAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "marginfi_accounts",
			Help:      "Number of marginfi accounts currently cached",
		}),
		CachedBanks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "banks",
			Help:      "Number of banks currently cached",
		}),
		CacheClockSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "clock_slot",
			Help:      "Slot of the cached clock",
		}),

		SnapshotsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "persisted_total",
			Help:      "Total number of cache snapshots persisted",
		}),
		SnapshotFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Total number of failed snapshot persists",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Snapshot persist duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),
		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "size_bytes",
			Help:      "Size of the last persisted snapshot",
		}),

		GeyserQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "geyser",
			Name:      "queue_depth",
			Help:      "Current depth of the geyser update queue",
		}),
		GeyserUpdatesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geyser",
			Name:      "updates_processed_total",
			Help:      "Total number of geyser updates applied by kind",
		}, []string{"kind"}),

		AccountsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "accounts_evaluated_total",
			Help:      "Total number of margin accounts evaluated",
		}),
		LiquidatableAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "liquidatable_accounts",
			Help:      "Number of accounts below maintenance health at last pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScanPartition increments the partition split counter.
func RecordScanPartition() {
	DefaultMetrics.ScanPartitions.Inc()
}

// RecordAccountsFetched adds to the fetched counter for a kind.
func RecordAccountsFetched(kind string, n int) {
	DefaultMetrics.AccountsFetched.WithLabelValues(kind).Add(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// UpdateCacheSizes updates the cached collection gauges.
func UpdateCacheSizes(marginfiAccounts, banks int) {
	DefaultMetrics.CachedMarginfiAccounts.Set(float64(marginfiAccounts))
	DefaultMetrics.CachedBanks.Set(float64(banks))
}

// UpdateClockSlot updates the cached clock slot gauge.
func UpdateClockSlot(slot uint64) {
	DefaultMetrics.CacheClockSlot.Set(float64(slot))
}

// RecordSnapshotPersisted records a successful snapshot persist.
func RecordSnapshotPersisted(seconds float64, sizeBytes int) {
	DefaultMetrics.SnapshotsPersisted.Inc()
	DefaultMetrics.SnapshotDuration.Observe(seconds)
	DefaultMetrics.SnapshotSizeBytes.Set(float64(sizeBytes))
}

// RecordSnapshotFailure records a failed snapshot persist.
func RecordSnapshotFailure() {
	DefaultMetrics.SnapshotFailures.Inc()
}

// UpdateGeyserQueueDepth updates the geyser queue depth gauge.
func UpdateGeyserQueueDepth(depth int) {
	DefaultMetrics.GeyserQueueDepth.Set(float64(depth))
}

// RecordGeyserUpdate increments the processed counter for a kind.
func RecordGeyserUpdate(kind string) {
	DefaultMetrics.GeyserUpdatesProcessed.WithLabelValues(kind).Inc()
}

// RecordEvaluation records one liquidation evaluation pass.
func RecordEvaluation(evaluated, liquidatable int) {
	DefaultMetrics.AccountsEvaluated.Add(float64(evaluated))
	DefaultMetrics.LiquidatableAccounts.Set(float64(liquidatable))
}
