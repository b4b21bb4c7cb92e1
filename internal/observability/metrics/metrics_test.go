package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/prospector/internal/errors"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunDispatched(nil)
		m.RunTransition("running", ResultSuccess)
		m.JobEvent(JobReserved, 1)
		m.ChangePublished("workflow_runs", "insert")
		m.PublishFailed("workflow_runs", errors.New("x"))
		m.ClientConnected(1)
		m.SubscriptionsChanged(1)
		m.ClientDropped("overflow")
		m.ObserveFanout("prospects", time.Millisecond)
		m.ObserveHTTPRequest("GET", "/api/runs", 200, time.Millisecond)
		m.ReaperCycle(ResultSuccess, time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New("prospector")

	m.RunDispatched(nil)
	m.RunDispatched(nil)
	m.RunDispatched(errors.New("boom"))
	assert.InDelta(t, 2, testutil.ToFloat64(m.runsDispatched.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsDispatched.WithLabelValues(ResultError)), 0)

	m.JobEvent(JobRequeued, 3)
	m.JobEvent(JobRequeued, 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.jobEvents.WithLabelValues(JobRequeued)), 0)

	m.PublishFailed("prospects", apperrors.Dispatch(errors.New("tx")))
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishFailures.WithLabelValues("prospects", "app_dispatch")), 0)

	m.ClientConnected(1)
	m.ClientConnected(1)
	m.ClientConnected(-1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.clients), 0)

	m.ReaperCycle(ResultError, time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reaperCycles.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.reaperLastOK), 0)
	m.ReaperCycle(ResultNoop, time.Millisecond)
	assert.Greater(t, testutil.ToFloat64(m.reaperLastOK), float64(0))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("prospector")
	m.ChangePublished("workflow_runs", "update")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body,
		`prospector_change_events_published_total{operation="update",table="workflow_runs"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
