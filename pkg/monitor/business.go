package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds the pipeline-level counters and histograms.
type BusinessMetrics struct {
	PaymentsConfirmedTotal     *prometheus.CounterVec
	PaymentAmountTotal         *prometheus.CounterVec
	SweepAttemptsTotal         *prometheus.CounterVec
	SweepExhaustedTotal        prometheus.Counter
	SweepInconsistencyTotal    prometheus.Counter
	CommissionAmountTotal      *prometheus.CounterVec
	MembershipActivationsTotal *prometheus.CounterVec
	PipelineStageDuration      *prometheus.HistogramVec
	ScanBlocksBehind           prometheus.Gauge
}

// Business is registered at package load so every entry point (server, CLI,
// tests) can record without an explicit init call.
var Business = newBusinessMetrics()

func newBusinessMetrics() *BusinessMetrics {
	return &BusinessMetrics{
		PaymentsConfirmedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "member_payments_confirmed_total",
			Help: "The total number of on-chain confirmed payments",
		}, []string{"chain"}),
		PaymentAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "member_payment_amount_usd_cents_total",
			Help: "The total confirmed payment amount in USD cents",
		}, []string{"chain"}),
		SweepAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "member_sweep_attempts_total",
			Help: "The total number of sweep dispatches by outcome",
		}, []string{"outcome"}),
		SweepExhaustedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "member_sweep_exhausted_total",
			Help: "Payments whose sweep retries were exhausted",
		}),
		SweepInconsistencyTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "member_sweep_inconsistency_total",
			Help: "Sweeps that succeeded remotely but could not be recorded locally",
		}),
		CommissionAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "member_commission_amount_usd_cents_total",
			Help: "The total commission amount allocated, by level class",
		}, []string{"class"}),
		MembershipActivationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "member_membership_activations_total",
			Help: "Membership activations by tier",
		}, []string{"tier"}),
		PipelineStageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "member_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		ScanBlocksBehind: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "member_scan_blocks_behind",
			Help: "Distance between the finalized head and the scan cursor",
		}),
	}
}
