package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the review console. Metrics are
// organized by subsystem: polling, synchronization, manuscripts, API requests,
// and auth. All counters and histograms are registered via promauto with the
// default Prometheus registry.
type Metrics struct {
	// PollTicks counts successful poll fetches.
	PollTicks prometheus.Counter

	// PollErrors counts poll fetches that failed and halted polling.
	PollErrors prometheus.Counter

	// PollersActive gauges how many pollers are currently armed.
	PollersActive prometheus.Gauge

	// StatusTransitions counts observed workflow status edges, labeled by
	// previous and new status.
	StatusTransitions *prometheus.CounterVec

	// WorkflowsCreated counts workflows started from this console.
	WorkflowsCreated prometheus.Counter

	// WorkflowsCompleted counts workflows observed reaching completed.
	WorkflowsCompleted prometheus.Counter

	// WorkflowsFailed counts workflows observed reaching failed.
	WorkflowsFailed prometheus.Counter

	// StageReruns counts stage re-run requests, labeled by stage and outcome.
	StageReruns *prometheus.CounterVec

	// ManuscriptFetches counts manuscript retrievals, labeled by outcome.
	ManuscriptFetches *prometheus.CounterVec

	// APIRequestDuration observes backend request duration in seconds,
	// labeled by operation and status class.
	APIRequestDuration *prometheus.HistogramVec

	// APIRequestsFailed counts failed backend requests by operation and
	// error type.
	APIRequestsFailed *prometheus.CounterVec

	// TokenRefreshes counts auth token refreshes, labeled by outcome.
	TokenRefreshes *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PollTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total number of successful workflow poll fetches",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Total number of poll fetches that failed and halted polling",
		}),
		PollersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pollers_active",
			Help:      "Number of pollers currently armed",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of observed workflow status transitions",
		}, []string{"from", "to"}),
		WorkflowsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_created_total",
			Help:      "Total number of workflows created from this console",
		}),
		WorkflowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Total number of workflows observed reaching completed",
		}),
		WorkflowsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_failed_total",
			Help:      "Total number of workflows observed reaching failed",
		}),
		StageReruns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_reruns_total",
			Help:      "Total number of stage re-run requests by stage and outcome",
		}, []string{"stage", "outcome"}),
		ManuscriptFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manuscript_fetches_total",
			Help:      "Total number of manuscript retrievals by outcome",
		}, []string{"outcome"}),
		APIRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of backend API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "status"}),
		APIRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_failed_total",
			Help:      "Total number of failed backend API requests",
		}, []string{"operation", "error_type"}),
		TokenRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Total number of auth token refreshes by outcome",
		}, []string{"outcome"}),
	}
}

// RecordPollTick records a successful poll fetch.
func (m *Metrics) RecordPollTick() {
	m.PollTicks.Inc()
}

// RecordPollError records a poll fetch that failed and halted polling.
func (m *Metrics) RecordPollError() {
	m.PollErrors.Inc()
}

// PollerStarted records that a poller was armed.
func (m *Metrics) PollerStarted() {
	m.PollersActive.Inc()
}

// PollerStopped records that a poller halted.
func (m *Metrics) PollerStopped() {
	m.PollersActive.Dec()
}

// RecordStatusTransition records an observed workflow status edge.
func (m *Metrics) RecordStatusTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
	switch to {
	case "completed":
		m.WorkflowsCompleted.Inc()
	case "failed":
		m.WorkflowsFailed.Inc()
	}
}

// RecordWorkflowCreated records that a workflow was started.
func (m *Metrics) RecordWorkflowCreated() {
	m.WorkflowsCreated.Inc()
}

// RecordStageRerun records a stage re-run request.
func (m *Metrics) RecordStageRerun(stage string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.StageReruns.WithLabelValues(stage, outcome).Inc()
}

// RecordManuscriptFetch records a manuscript retrieval attempt.
func (m *Metrics) RecordManuscriptFetch(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ManuscriptFetches.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records a backend request with its duration and status
// class (e.g., "2xx", "4xx").
func (m *Metrics) RecordAPIRequest(operation, status string, durationSeconds float64) {
	m.APIRequestDuration.WithLabelValues(operation, status).Observe(durationSeconds)
}

// RecordAPIRequestFailed records a failed backend request.
func (m *Metrics) RecordAPIRequestFailed(operation, errorType string) {
	m.APIRequestsFailed.WithLabelValues(operation, errorType).Inc()
}

// RecordTokenRefresh records an auth token refresh attempt.
func (m *Metrics) RecordTokenRefresh(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}
