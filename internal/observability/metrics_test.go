package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_console_new")

	assert.NotNil(t, m.PollTicks)
	assert.NotNil(t, m.PollErrors)
	assert.NotNil(t, m.PollersActive)
	assert.NotNil(t, m.StatusTransitions)
	assert.NotNil(t, m.WorkflowsCreated)
	assert.NotNil(t, m.WorkflowsCompleted)
	assert.NotNil(t, m.WorkflowsFailed)
	assert.NotNil(t, m.StageReruns)
	assert.NotNil(t, m.ManuscriptFetches)
	assert.NotNil(t, m.APIRequestDuration)
	assert.NotNil(t, m.APIRequestsFailed)
	assert.NotNil(t, m.TokenRefreshes)
}

func TestRecordPollTick(t *testing.T) {
	m := NewMetrics("test_poll_tick")

	initial := testutil.ToFloat64(m.PollTicks)
	m.RecordPollTick()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PollTicks))
}

func TestPollerGauge(t *testing.T) {
	m := NewMetrics("test_poller_gauge")

	m.PollerStarted()
	m.PollerStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PollersActive))

	m.PollerStopped()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollersActive))
}

func TestRecordStatusTransition(t *testing.T) {
	m := NewMetrics("test_status_transition")

	m.RecordStatusTransition("running", "completed")
	m.RecordStatusTransition("running", "failed")
	m.RecordStatusTransition("pending", "running")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StatusTransitions.WithLabelValues("running", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkflowsCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkflowsFailed))
}

func TestRecordStageRerun(t *testing.T) {
	m := NewMetrics("test_stage_rerun")

	m.RecordStageRerun("screening", true)
	m.RecordStageRerun("screening", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageReruns.WithLabelValues("screening", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageReruns.WithLabelValues("screening", "failure")))
}

func TestRecordManuscriptFetch(t *testing.T) {
	m := NewMetrics("test_manuscript_fetch")

	m.RecordManuscriptFetch(true)
	m.RecordManuscriptFetch(true)
	m.RecordManuscriptFetch(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ManuscriptFetches.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ManuscriptFetches.WithLabelValues("failure")))
}

func TestRecordAPIRequest(t *testing.T) {
	m := NewMetrics("test_api_request")

	m.RecordAPIRequest("get_workflow", "2xx", 0.12)

	observer, ok := m.APIRequestDuration.WithLabelValues("get_workflow", "2xx").(prometheus.Metric)
	require.True(t, ok)
	hist, err := getHistogramSampleCount(observer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hist)
}

func TestRecordTokenRefresh(t *testing.T) {
	m := NewMetrics("test_token_refresh")

	m.RecordTokenRefresh(true)
	m.RecordTokenRefresh(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("failure")))
}

// getHistogramSampleCount extracts the sample count from a histogram metric.
func getHistogramSampleCount(h prometheus.Metric) (uint64, error) {
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleCount(), nil
}
