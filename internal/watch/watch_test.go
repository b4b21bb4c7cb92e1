package watch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/realtime"
	"github.com/target/prospector/internal/watch"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func runView(status model.RunStatus, updated time.Time) model.RunView {
	return model.RunView{
		ID:           "run-1",
		Location:     "Cape Town",
		MaxProspects: 5,
		Status:       status,
		CreatedAt:    epoch,
		UpdatedAt:    updated,
	}
}

func writeEvent(t *testing.T, w http.ResponseWriter, name string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func snapshot(t *testing.T, table model.Table, rows any) realtime.Snapshot {
	t.Helper()
	b, err := json.Marshal(rows)
	require.NoError(t, err)
	return realtime.Snapshot{Table: table, Rows: b}
}

func TestClient_ResnapshotsAfterReset(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		switch conns.Add(1) {
		case 1:
			writeEvent(t, w, "snapshot", snapshot(t, model.TableWorkflowRuns, []model.RunView{runView(model.RunStatusQueued, epoch)}))
			writeEvent(t, w, "snapshot", snapshot(t, model.TableProspects, []model.ProspectView{}))
			writeEvent(t, w, "ready", map[string]any{"client_id": "c1"})

			view, err := json.Marshal(runView(model.RunStatusRunning, epoch.Add(time.Second)))
			require.NoError(t, err)
			writeEvent(t, w, "change", realtime.Change{
				ChangeEvent: model.ChangeEvent{Table: model.TableWorkflowRuns, Operation: model.OperationUpdate, Row: view},
				View:        view,
			})
			writeEvent(t, w, "reset", map[string]string{"reason": "overflow"})
		default:
			writeEvent(t, w, "snapshot", snapshot(t, model.TableWorkflowRuns, []model.RunView{runView(model.RunStatusCompleted, epoch.Add(time.Minute))}))
			writeEvent(t, w, "snapshot", snapshot(t, model.TableProspects, []model.ProspectView{}))
			writeEvent(t, w, "ready", map[string]any{"client_id": "c2"})
			<-r.Context().Done()
		}
	}))
	t.Cleanup(srv.Close)

	readies := make(chan string, 4)
	var changes atomic.Int32
	client, err := watch.New(watch.Options{
		BaseURL:        srv.URL,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		OnReady:        func(id string, _ *realtime.Mirror) { readies <- id },
		OnChange:       func(realtime.Change, *realtime.Mirror) { changes.Add(1) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	for _, want := range []string{"c1", "c2"} {
		select {
		case got := <-readies:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for ready %s", want)
		}
	}

	run, ok := client.Mirror().Run("run-1")
	require.True(t, ok)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, int32(1), changes.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClient_FatalStatusStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"validation"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	client, err := watch.New(watch.Options{BaseURL: srv.URL, Tables: []model.Table{model.TableProspects}})
	require.NoError(t, err)

	err = client.Run(context.Background())
	var se *watch.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.True(t, se.Fatal())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conns.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := watch.New(watch.Options{
		BaseURL:        srv.URL,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return conns.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
