package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/data/memory"
	domainjob "github.com/target/prospector/internal/domain/job"
	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/realtime"
	"github.com/target/prospector/internal/service"
)

const testQueue = "worker_jobs"

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAPI is the full router over a memory store.
type testAPI struct {
	handler  http.Handler
	store    *memory.Store
	registry *realtime.Registry
	metrics  *metrics.Metrics
}

func newTestAPI(t *testing.T, checks map[string]HealthCheck) *testAPI {
	t.Helper()
	logger := discardLogger()
	store := memory.New(memory.Options{TimeProvider: data.NewFixedTimeProvider(testEpoch), RetryDelay: 30 * time.Second})
	m := metrics.New("prospector")
	reg := realtime.NewRegistry(realtime.Options{ClientBuffer: 64, TopicBuffer: 64, PublishTimeout: time.Second})
	t.Cleanup(reg.Close)

	dispatcher, err := service.NewDispatcherService(service.DispatcherServiceOptions{
		Repo: store, Publisher: reg, Config: service.DispatcherConfig{Queue: testQueue}, Logger: logger, Metrics: m,
	})
	require.NoError(t, err)
	worker, err := service.NewWorkerService(service.WorkerServiceOptions{
		Runs: store.Runs(), Prospects: store.Prospects(), Publisher: reg, Logger: logger,
	})
	require.NoError(t, err)
	audiences, err := service.NewAudienceService(service.AudienceServiceOptions{Repo: store.Audiences(), Logger: logger})
	require.NoError(t, err)
	projection, err := service.NewProjectionService(service.ProjectionServiceOptions{Repo: store.Projection(), Logger: logger})
	require.NoError(t, err)
	feeds, err := service.NewFeedService(service.FeedServiceOptions{Registry: reg, Projection: projection, Logger: logger})
	require.NoError(t, err)
	policy, err := domainjob.NewVisibilityPolicy(30*time.Second, 10*time.Minute)
	require.NoError(t, err)
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Queue: store.Queue(), QueueName: testQueue, Visibility: policy, MaxLongPoll: 2 * time.Second, Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(jobs.Close)

	return &testAPI{
		handler: NewRouter(RouterServices{
			Dispatcher:   dispatcher,
			Worker:       worker,
			Jobs:         jobs,
			Audiences:    audiences,
			Projection:   projection,
			Feeds:        feeds,
			Metrics:      m,
			Heartbeat:    time.Hour,
			WriteTimeout: time.Second,
			HealthChecks: checks,
			Logger:       logger,
		}),
		store:    store,
		registry: reg,
		metrics:  m,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createAudience(t *testing.T, name string) *model.Audience {
	t.Helper()
	aud, err := a.store.Audiences().Create(context.Background(), &model.CreateAudienceRequest{Name: name})
	require.NoError(t, err)
	return aud
}

func (a *testAPI) startRun(t *testing.T, audienceID string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/runs", map[string]any{
		"audience_id": audienceID, "location": "Cape Town", "max_prospects": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var handle model.RunHandle
	decodeBody(t, rec, &handle)
	return handle.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	decodeBody(t, rec, &body)
	return body
}
