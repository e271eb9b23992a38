// Package metrics registers the application's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ProcessesStarted     prometheus.Counter
	ProcessesResumed     prometheus.Counter
	ProcessesRateLimited prometheus.Counter
	OtpCodesIssued       prometheus.Counter
	OtpVerifyFailures    prometheus.Counter
	DocumentsSubmitted   prometheus.Counter
	DocumentsResubmitted prometheus.Counter
	VerificationsStarted prometheus.Counter
	VerificationOutcomes *prometheus.CounterVec
	SweepDuration        *prometheus.HistogramVec
	SweepItemFailures    *prometheus.CounterVec
	GuardContention      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ProcessesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_processes_started_total",
			Help: "Total number of onboarding processes created",
		}),
		ProcessesResumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_processes_resumed_total",
			Help: "Total number of onboarding processes resumed by identification fingerprint",
		}),
		ProcessesRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_processes_rate_limited_total",
			Help: "Total number of onboarding starts rejected by the per-user daily quota",
		}),
		OtpCodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_otp_codes_issued_total",
			Help: "Total number of OTP codes issued, including resends",
		}),
		OtpVerifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_otp_verify_failures_total",
			Help: "Total number of failed OTP verification attempts",
		}),
		DocumentsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_documents_submitted_total",
			Help: "Total number of identity documents submitted",
		}),
		DocumentsResubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_documents_resubmitted_total",
			Help: "Total number of identity documents resubmitted replacing a disposed original",
		}),
		VerificationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_verifications_started_total",
			Help: "Total number of batched document verifications started at the provider",
		}),
		VerificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_verification_outcomes_total",
			Help: "Resolved identity verification outcomes by status",
		}, []string{"status"}),
		SweepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrolld_reconciliation_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweeps by sweep type",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
		SweepItemFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_reconciliation_item_failures_total",
			Help: "Reconciliation items that failed and were skipped, by sweep type",
		}, []string{"sweep"}),
		GuardContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_guard_contention_total",
			Help: "Per-activation lock acquisitions that failed due to contention",
		}),
	}
}
