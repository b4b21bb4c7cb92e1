package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
)

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = api.do(t, http.MethodHead, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestHealthz_Degraded(t *testing.T) {
	api := newTestAPI(t, map[string]HealthCheck{
		"db":    func(context.Context) error { return errors.New("connection refused") },
		"redis": func(context.Context) error { return nil },
	})

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","failing":{"db":"connection refused"}}`, rec.Body.String())
}

func TestRuns_StartListAndGet(t *testing.T) {
	api := newTestAPI(t, nil)
	aud := api.createAudience(t, "Local businesses")

	id := api.startRun(t, aud.ID)

	rec := api.do(t, http.MethodGet, "/api/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.RunView
	decodeBody(t, rec, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, model.RunStatusQueued, runs[0].Status)
	require.NotNil(t, runs[0].AudienceName)
	assert.Equal(t, "Local businesses", *runs[0].AudienceName)

	rec = api.do(t, http.MethodGet, "/api/runs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_StartValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/runs", map[string]any{"audience_id": "nope", "location": "Cape Town"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation", body.Error)
	assert.Equal(t, "audience_id", body.Field)

	rec = api.do(t, http.MethodPost, "/api/runs", "{bad")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeError(t, rec).Error)

	rec = api.do(t, http.MethodPost, "/api/runs", `{"audience_id":"a","location":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stats, err := api.store.Queue().Stats(context.Background(), testQueue)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestAudiences_CRUDAndDeletePolicy(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/audiences", map[string]any{"name": "SaaS"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var aud model.Audience
	decodeBody(t, rec, &aud)

	rec = api.do(t, http.MethodPost, "/api/audiences", map[string]any{"name": "SaaS"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/audiences/"+aud.ID, map[string]any{"name": "SaaS founders"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/audiences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Audience
	decodeBody(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "SaaS founders", list[0].Name)

	rec = api.do(t, http.MethodDelete, "/api/audiences/"+aud.ID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "policy", decodeError(t, rec).Field)

	rec = api.do(t, http.MethodDelete, "/api/audiences/"+aud.ID+"?policy=detach", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res model.AudienceDeleteResult
	decodeBody(t, rec, &res)
	assert.True(t, res.Deleted)
	assert.Equal(t, model.AudienceDeleteDetach, res.Policy)

	rec = api.do(t, http.MethodGet, "/api/audiences/"+aud.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobs_ReserveLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/jobs/reserve", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	aud := api.createAudience(t, "Ecommerce")
	runID := api.startRun(t, aud.ID)

	rec = api.do(t, http.MethodGet, "/api/jobs/reserve?visibility=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job model.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, runID, job.RunID)
	payload, err := job.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, 3, payload.MaxProspects)

	rec = api.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/heartbeat?extend=2m", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/jobs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":0,"reserved":1,"dead":0}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/ack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/ack", nil)
	assert.JSONEq(t, `{"ok":false}`, rec.Body.String())
}

func TestJobs_FailAndBadDuration(t *testing.T) {
	api := newTestAPI(t, nil)
	aud := api.createAudience(t, "Local")
	api.startRun(t, aud.ID)

	rec := api.do(t, http.MethodGet, "/api/jobs/reserve?visibility=soon", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "visibility", decodeError(t, rec).Field)

	rec = api.do(t, http.MethodGet, "/api/jobs/reserve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job model.Job
	decodeBody(t, rec, &job)

	rec = api.do(t, http.MethodPost, "/api/jobs/"+job.ID+"/fail", map[string]any{"error": " crawler timeout "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"found":true,"dead":false}`, rec.Body.String())

	got, err := api.store.Queue().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "crawler timeout", *got.LastError)
}

func TestWorker_ReportsProgress(t *testing.T) {
	api := newTestAPI(t, nil)
	aud := api.createAudience(t, "Local")
	runID := api.startRun(t, aud.ID)

	rec := api.do(t, http.MethodPost, "/api/worker/runs/"+runID+"/prospects", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/worker/runs/"+runID+"/status", map[string]any{"status": "running"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tr model.TransitionResult
	decodeBody(t, rec, &tr)
	assert.True(t, tr.Changed)
	assert.Equal(t, model.RunStatusRunning, tr.Run.Status)

	rec = api.do(t, http.MethodPost, "/api/worker/runs/"+runID+"/prospects", map[string]any{
		"url": "https://example.com", "source_query": "plumbers cape town",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Prospect
	decodeBody(t, rec, &p)

	rec = api.do(t, http.MethodPost, "/api/worker/prospects/"+p.ID+"/analysis", map[string]any{
		"scores": map[string]float64{"seo": 0.4}, "tech_issues": []string{"no https"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/worker/prospects/"+p.ID+"/contacts", map[string]any{
		"contacts": []map[string]string{{"type": "email", "value": "owner@example.com"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/prospects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.ProspectDetail
	decodeBody(t, rec, &detail)
	require.NotNil(t, detail.Analysis)
	assert.InDelta(t, 0.4, detail.Analysis.Scores["seo"], 1e-9)
	require.Len(t, detail.Contacts, 1)
	require.NotNil(t, detail.Location)
	assert.Equal(t, "Cape Town", *detail.Location)

	rec = api.do(t, http.MethodPost, "/api/worker/runs/"+runID+"/status", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/worker/runs/"+runID+"/status", map[string]any{"status": "running"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodGet, "/healthz", nil)

	n, err := testutil.GatherAndCount(api.metrics.Registry(), "prospector_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "prospector_http_request_duration_seconds"))
}
