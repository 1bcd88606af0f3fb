// Package metrics exposes Prometheus counters for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scans by verdict and decision source.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wassupguard_scans_total",
			Help: "Total number of completed file scans",
		},
		[]string{"verdict", "source"},
	)

	// ThreatsTotal counts scans that classified a file as a threat.
	ThreatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wassupguard_threats_total",
			Help: "Total number of threats detected",
		},
	)

	// RemoteLookupsTotal counts reputation service calls by outcome.
	RemoteLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wassupguard_remote_lookups_total",
			Help: "Total number of reputation service lookups",
		},
		[]string{"result"},
	)

	// RateLimitDenialsTotal counts scans degraded by quota exhaustion or
	// server-side throttling.
	RateLimitDenialsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wassupguard_rate_limit_denials_total",
			Help: "Total number of scans denied a remote lookup by rate limiting",
		},
	)

	// QuarantineOpsTotal counts quarantine store operations by kind.
	QuarantineOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wassupguard_quarantine_operations_total",
			Help: "Total number of quarantine store operations",
		},
		[]string{"operation"},
	)
)

// RecordScan records one completed scan.
func RecordScan(verdict, source string) {
	ScansTotal.WithLabelValues(verdict, source).Inc()
}

// RecordThreat records one detected threat.
func RecordThreat() {
	ThreatsTotal.Inc()
}

// RecordRemoteLookup records one reputation service call.
func RecordRemoteLookup(result string) {
	RemoteLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitDenial records one rate-limited scan.
func RecordRateLimitDenial() {
	RateLimitDenialsTotal.Inc()
}

// RecordQuarantine records one quarantine store operation.
func RecordQuarantine(operation string) {
	QuarantineOpsTotal.WithLabelValues(operation).Inc()
}
