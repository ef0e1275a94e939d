package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Job outcomes.
const (
	JobFired     = "fired"
	JobMisfired  = "misfired"
	JobCoalesced = "coalesced"
	JobFailed    = "failed"
)

var (
	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbot_notifications_total",
			Help: "Notification deliveries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	jobsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbot_jobs_scheduled_total",
			Help: "Reminder jobs scheduled by kind",
		},
		[]string{"kind"},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbot_jobs_finished_total",
			Help: "Reminder jobs leaving the scheduler by outcome",
		},
		[]string{"outcome"},
	)

	jobsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventbot_jobs_pending",
			Help: "Reminder jobs waiting in the scheduler",
		},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbot_reconciliations_total",
			Help: "Reconciliation runs by path",
		},
		[]string{"path"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDelivery counts one per-user delivery attempt.
func RecordDelivery(kind, outcome string) {
	deliveries.WithLabelValues(kind, outcome).Inc()
}

// RecordScheduled counts a job accepted by the scheduler.
func RecordScheduled(kind string) {
	jobsScheduled.WithLabelValues(kind).Inc()
}

// RecordJob counts a job leaving the scheduler.
func RecordJob(outcome string) {
	jobsFinished.WithLabelValues(outcome).Inc()
}

// SetPending sets the number of queued jobs.
func SetPending(n int) {
	jobsPending.Set(float64(n))
}

// RecordReconciliation counts a reconciliation run ("startup", "resync", "new_user", "event").
func RecordReconciliation(path string) {
	reconciliations.WithLabelValues(path).Inc()
}
