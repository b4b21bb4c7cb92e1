package changefeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/realtime"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testEvent(t *testing.T, id string) model.ChangeEvent {
	t.Helper()
	evt, err := model.NewChangeEvent(model.TableWorkflowRuns, model.OperationInsert, model.WorkflowRun{
		ID:     id,
		Status: model.RunStatusQueued,
	})
	require.NoError(t, err)
	return evt
}

func TestBestEffort_SwallowsFailures(t *testing.T) {
	m := metrics.New("prospector")
	next := &recordingPublisher{err: errors.New("broker down")}
	p := NewBestEffort(next, nil, m)

	require.NoError(t, p.Publish(context.Background(), testEvent(t, "r1")))

	n, err := testutil.GatherAndCount(m.Registry(), "prospector_change_publish_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBestEffort_CountsPublished(t *testing.T) {
	m := metrics.New("prospector")
	next := &recordingPublisher{}
	p := NewBestEffort(next, nil, m)

	require.NoError(t, p.Publish(context.Background(), testEvent(t, "r1")))
	require.NoError(t, p.Publish(context.Background(), testEvent(t, "r2")))
	assert.Equal(t, 2, next.count())

	n, err := testutil.GatherAndCount(m.Registry(), "prospector_change_publish_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = testutil.GatherAndCount(m.Registry(), "prospector_change_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "one series for workflow_runs/insert")
}

func TestBestEffort_NilSafe(t *testing.T) {
	var p *BestEffort
	assert.NoError(t, p.Publish(context.Background(), testEvent(t, "r1")))
	assert.NoError(t, Discard{}.Publish(context.Background(), testEvent(t, "r1")))
}

// flakySource fails its first connection and then streams events until ctx ends.
type flakySource struct {
	calls  atomic.Int32
	events []model.ChangeEvent
}

func (s *flakySource) Stream(ctx context.Context, ready func(), fn func(context.Context, model.ChangeEvent)) error {
	if s.calls.Add(1) == 1 {
		return errors.New("connection refused")
	}
	ready()
	for _, evt := range s.events {
		fn(ctx, evt)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRelay_ReconnectsAndForwards(t *testing.T) {
	src := &flakySource{events: []model.ChangeEvent{testEvent(t, "r1"), testEvent(t, "r2")}}
	sink := &recordingPublisher{}
	relay := NewRelay(src, sink, RelayOptions{InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), src.calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_SinkErrorsDoNotStopRelay(t *testing.T) {
	src := &flakySource{events: []model.ChangeEvent{testEvent(t, "r1")}}
	src.calls.Store(1)
	sink := &recordingPublisher{err: errors.New("registry closed")}
	relay := NewRelay(src, sink, RelayOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, relay.Run(ctx))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRelay_ResyncsClientsAfterGap(t *testing.T) {
	reg := realtime.NewRegistry(realtime.Options{})
	t.Cleanup(reg.Close)
	sub, err := reg.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	var resyncs atomic.Int32
	src := &flakySource{events: []model.ChangeEvent{testEvent(t, "r3")}}
	relay := NewRelay(src, reg, RelayOptions{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		OnResync: func(context.Context) {
			resyncs.Add(1)
			reg.DropAll(realtime.ReasonResync, nil)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	select {
	case <-sub.Client().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client was not told to resync")
	}
	var de *realtime.DeliveryError
	require.ErrorAs(t, sub.Client().Err(), &de)
	assert.Equal(t, realtime.ReasonResync, de.Reason)
	assert.Equal(t, int32(1), resyncs.Load())
}

func TestRelay_FirstSessionDoesNotResync(t *testing.T) {
	src := &flakySource{events: []model.ChangeEvent{testEvent(t, "r1")}}
	src.calls.Store(1)
	sink := &recordingPublisher{}
	var resyncs atomic.Int32
	relay := NewRelay(src, sink, RelayOptions{OnResync: func(context.Context) { resyncs.Add(1) }})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, resyncs.Load())
}
