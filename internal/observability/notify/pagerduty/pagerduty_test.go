package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	require.NoError(t, err)

	event := client.buildEvent(notify.JobFailurePayload{
		JobID:      "123",
		RunID:      "run-1",
		Queue:      "worker_jobs",
		Attempts:   5,
		Error:      "boom",
		ErrorClass: "dead_letter",
		Metadata:   map[string]string{"job_id": "shadowed", "location": "Lagos"},
	})

	assert.Equal(t, "worker_jobs:123", event["dedup_key"])

	section, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.SeverityCritical, section["severity"])
	assert.Equal(t, "prospector", section["source"])
	assert.Equal(t, "prospector", section["component"])
	assert.Equal(t, "Job 123 for run run-1 dead-lettered", section["summary"])

	custom, ok := section["custom_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", custom["job_id"])
	assert.Equal(t, "run-1", custom["run_id"])
	assert.Equal(t, "5", custom["attempts"])
	assert.Equal(t, "Lagos", custom["location"])
}

func TestSendJobFailurePostsToEndpoint(t *testing.T) {
	var calls atomic.Int32
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "j1", Queue: "q"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "key", got["routing_key"])
	assert.Equal(t, "trigger", got["event_action"])
}

func TestSendJobFailureDoesNotRetryRejectedEvent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, RetryLimit: 3})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad routing key")
	assert.Equal(t, int32(1), calls.Load())
}
