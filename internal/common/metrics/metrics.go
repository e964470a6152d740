// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_publish_attempts_total",
			Help: "Total number of upload attempts per platform",
		},
		[]string{"platform"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_publish_failures_total",
			Help: "Total number of terminal publish failures per platform",
		},
		[]string{"platform", "error_code"},
	)

	PublishRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_publish_retries_total",
			Help: "Total number of retried upload attempts per platform",
		},
		[]string{"platform"},
	)

	ComplianceRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_compliance_rejections_total",
			Help: "Total number of candidates rejected by the originality gate",
		},
		[]string{"reason"},
	)

	LedgerAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_ledger_appends_total",
			Help: "Total number of audit records appended",
		},
	)

	CandidateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pipeline_candidate_duration_seconds",
			Help: "Duration of end-to-end candidate processing in seconds",
		},
	)

	CandidatesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_candidates_in_flight",
			Help: "Number of candidates currently being processed",
		},
	)
)
