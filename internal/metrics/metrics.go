package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wafwatch_records_total",
		Help: "Total number of WAF log records processed, by outcome",
	}, []string{"outcome"})
	findingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wafwatch_findings_total",
		Help: "Total number of findings filed per rule group",
	}, []string{"group"})
	chunkFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wafwatch_chunk_failures_total",
		Help: "Total number of pipeline chunks that failed",
	})
	blacklistChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wafwatch_blacklist_changes_total",
		Help: "Total number of blacklist ledger changes, by kind",
	}, []string{"kind"})
	ipSetConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wafwatch_ipset_conflicts_total",
		Help: "Total number of IP set updates rejected because of a stale lock token",
	})
	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wafwatch_run_duration_seconds",
		Help:    "Duration of monitoring runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"mode"})
	httpPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wafwatch_http_panics_total",
		Help: "Total number of API handler panics recovered, by route",
	}, []string{"route"})
	lastRunSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wafwatch_last_run_success",
		Help: "1 when the last run of a mode succeeded, 0 otherwise",
	}, []string{"mode"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(recordsTotal, findingsTotal, chunkFailuresTotal, blacklistChangesTotal,
		ipSetConflictsTotal, runDuration, lastRunSuccess, httpPanicsTotal)
}

// AddRecords counts records with outcome parsed, malformed or unclassified.
func AddRecords(outcome string, n int) { recordsTotal.WithLabelValues(outcome).Add(float64(n)) }

// AddFindings counts findings filed under group.
func AddFindings(group string, n int) { findingsTotal.WithLabelValues(group).Add(float64(n)) }

// AddChunkFailures counts failed pipeline chunks.
func AddChunkFailures(n int) { chunkFailuresTotal.Add(float64(n)) }

// AddBlacklistChanges counts ledger changes of kind added, expired, adopted or dropped.
func AddBlacklistChanges(kind string, n int) {
	blacklistChangesTotal.WithLabelValues(kind).Add(float64(n))
}

// AddIPSetConflicts counts rejected IP set updates.
func AddIPSetConflicts(n int) { ipSetConflictsTotal.Add(float64(n)) }

// AddPanic counts a recovered handler panic. Unmatched routes are reported as "unknown".
func AddPanic(route string) {
	if route == "" {
		route = "unknown"
	}
	httpPanicsTotal.WithLabelValues(route).Inc()
}

// ObserveRun records the duration and outcome of a run.
func ObserveRun(mode string, d time.Duration, success bool) {
	runDuration.WithLabelValues(mode).Observe(d.Seconds())
	v := 0.0
	if success {
		v = 1
	}
	lastRunSuccess.WithLabelValues(mode).Set(v)
}
