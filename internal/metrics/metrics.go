// Package metrics provides Prometheus metrics for the call dispatch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// =============================================================================
// CYCLE METRICS
// =============================================================================

// CyclesTotal counts dial cycles by instance and result
// (completed, skipped_window, skipped_lease, config_error, error).
var CyclesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dialer",
	Name:      "cycles_total",
	Help:      "Dial cycles by instance and result",
}, []string{"instance_id", "result"})

// EligibleBills is the number of bills past the minimum overdue age in the last cycle.
var EligibleBills = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "dialer",
	Name:      "eligible_bills",
	Help:      "Bills eligible for collection in the last cycle",
}, []string{"instance_id"})

// QueueSize is the scheduled queue length of the last cycle.
var QueueSize = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "dialer",
	Name:      "queue_size",
	Help:      "Candidates queued for dispatch in the last cycle",
}, []string{"instance_id"})

// CycleDurationSeconds tracks wall time of a full cycle including pauses.
var CycleDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dialer",
	Name:      "cycle_duration_seconds",
	Help:      "Time taken to run one instance cycle",
	Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
})

// =============================================================================
// DISPATCH METRICS
// =============================================================================

// CallsTriggeredTotal counts calls accepted by the gateway.
var CallsTriggeredTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dialer",
	Name:      "calls_triggered_total",
	Help:      "Calls accepted by the telephony gateway",
}, []string{"instance_id"})

// DispatchFailuresTotal counts failed originate attempts by reason
// (gateway_status, malformed_ack, transport, persist).
var DispatchFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dialer",
	Name:      "dispatch_failures_total",
	Help:      "Failed dispatch attempts by reason",
}, []string{"instance_id", "reason"})

// GatewayLatencySeconds tracks originate round trips.
var GatewayLatencySeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dialer",
	Name:      "gateway_latency_seconds",
	Help:      "Latency of originate requests to the telephony gateway",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// LimiterRejectionsTotal counts numbers refused by the rate limiter by reason
// (daily_cap, interval, query_error).
var LimiterRejectionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dialer",
	Name:      "limiter_rejections_total",
	Help:      "Numbers refused by the rate limiter",
}, []string{"instance_id", "reason"})

// =============================================================================
// Helper Functions
// =============================================================================

// ObserveCycle records the counters of one finished cycle.
func ObserveCycle(instanceID, result string, eligible, queued int, seconds float64) {
	CyclesTotal.WithLabelValues(instanceID, result).Inc()
	if result != "completed" {
		return
	}
	EligibleBills.WithLabelValues(instanceID).Set(float64(eligible))
	QueueSize.WithLabelValues(instanceID).Set(float64(queued))
	CycleDurationSeconds.Observe(seconds)
}
