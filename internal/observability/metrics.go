// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Optimizer metrics
	ScenariosSolved     prometheus.Counter
	ScenarioFailures    *prometheus.CounterVec
	OptimizeDuration    prometheus.Histogram
	FractionTTLeaves    prometheus.Histogram
	SecurityDelayBlocks prometheus.Histogram

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	RowsPersisted *prometheus.CounterVec

	// Server metrics
	HTTPRequests     *prometheus.CounterVec
	WSSessionsActive prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tt_analysis"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Optimizer metrics
		ScenariosSolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "scenarios_solved_total",
			Help:      "Total number of scenario rows optimized successfully",
		}),
		ScenarioFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "scenario_failures_total",
			Help:      "Total number of scenario rows rejected, by error kind",
		}, []string{"kind"}),
		OptimizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "optimize_duration_seconds",
			Help:      "Time to optimize one scenario row",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		FractionTTLeaves: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "fraction_tt_leaves",
			Help:      "Optimal fraction of block space devoted to TT leaves",
			Buckets:   prometheus.LinearBuckets(0.05, 0.05, 19),
		}),
		SecurityDelayBlocks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "security_delay_blocks",
			Help:      "Blocks needed to put every leaf on-chain",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),

		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of analysis runs by source and status",
		}, []string{"source", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Analysis run duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"source"}),
		RowsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "rows_persisted_total",
			Help:      "Total number of result rows written, by store",
		}, []string{"store"}),

		// Server metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
		WSSessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_sessions_active",
			Help:      "Number of open streaming analysis sessions",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful analysis run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordScenarioSolved records a successfully optimized row.
func RecordScenarioSolved(seconds, fraction float64, delayBlocks int64) {
	DefaultMetrics.ScenariosSolved.Inc()
	DefaultMetrics.OptimizeDuration.Observe(seconds)
	DefaultMetrics.FractionTTLeaves.Observe(fraction)
	DefaultMetrics.SecurityDelayBlocks.Observe(float64(delayBlocks))
}

// RecordScenarioFailed records a rejected row.
func RecordScenarioFailed(kind string) {
	DefaultMetrics.ScenarioFailures.WithLabelValues(kind).Inc()
}

// RecordRun records an analysis run.
func RecordRun(source, status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.RunsTotal.WithLabelValues(source, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(source).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordRowsPersisted counts rows written to a store.
func RecordRowsPersisted(store string, n int) {
	DefaultMetrics.RowsPersisted.WithLabelValues(store).Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(endpoint string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(endpoint, statusLabel(code)).Inc()
}

// WSSessionStarted increments the active streaming session gauge.
func WSSessionStarted() {
	DefaultMetrics.WSSessionsActive.Inc()
}

// WSSessionEnded decrements the active streaming session gauge.
func WSSessionEnded() {
	DefaultMetrics.WSSessionsActive.Dec()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
