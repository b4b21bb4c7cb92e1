package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
)

func newTestRegistry(t *testing.T, buffer int) *Registry {
	t.Helper()
	r := NewRegistry(Options{ClientBuffer: buffer, TopicBuffer: 16, PublishTimeout: time.Second})
	t.Cleanup(r.Close)
	return r
}

func runEvent(t *testing.T, id string, status model.RunStatus) model.ChangeEvent {
	t.Helper()
	evt, err := model.NewChangeEvent(model.TableWorkflowRuns, model.OperationUpdate, model.WorkflowRun{
		ID:        id,
		Location:  "Austin, TX",
		Status:    status,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return evt
}

func prospectEvent(t *testing.T, id string) model.ChangeEvent {
	t.Helper()
	evt, err := model.NewChangeEvent(model.TableProspects, model.OperationInsert, model.Prospect{
		ID:        id,
		RunID:     "run-1",
		URL:       "https://example.com/" + id,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return evt
}

func receive(t *testing.T, c *Client) Delivery {
	t.Helper()
	select {
	case d := <-c.Events():
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return Delivery{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case d := <-c.Events():
		t.Fatalf("unexpected delivery %d on %s", d.Seq, d.Event.Table)
	default:
	}
}

func TestRegistry_PublishDeliversInOrder(t *testing.T) {
	r := newTestRegistry(t, 8)
	ctx := context.Background()

	sub, err := r.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	c := sub.Client()

	statuses := []model.RunStatus{model.RunStatusQueued, model.RunStatusRunning, model.RunStatusCompleted}
	for _, s := range statuses {
		require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", s)))
	}

	for i, s := range statuses {
		d := receive(t, c)
		assert.Equal(t, uint64(i+1), d.Seq)
		run, err := d.Event.DecodeRun()
		require.NoError(t, err)
		assert.Equal(t, s, run.Status)
	}
	assertEmpty(t, c)
}

func TestRegistry_CrossTableOrderForSequentialPublisher(t *testing.T) {
	r := newTestRegistry(t, 8)
	ctx := context.Background()

	c, err := r.Client("c1")
	require.NoError(t, err)
	_, err = c.Subscribe(model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	_, err = c.Subscribe(model.TableProspects, nil)
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusRunning)))
	require.NoError(t, r.Publish(ctx, prospectEvent(t, "p-1")))
	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusCompleted)))

	assert.Equal(t, model.TableWorkflowRuns, receive(t, c).Event.Table)
	assert.Equal(t, model.TableProspects, receive(t, c).Event.Table)
	assert.Equal(t, model.TableWorkflowRuns, receive(t, c).Event.Table)
}

func TestRegistry_OtherTablesNotDelivered(t *testing.T) {
	r := newTestRegistry(t, 8)
	sub, err := r.Subscribe("c1", model.TableProspects, nil)
	require.NoError(t, err)

	require.NoError(t, r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusRunning)))
	assertEmpty(t, sub.Client())
}

func TestRegistry_FilterNarrowsDelivery(t *testing.T) {
	r := newTestRegistry(t, 8)
	f, err := CompileFilter("status == 'running'")
	require.NoError(t, err)

	sub, err := r.Subscribe("c1", model.TableWorkflowRuns, f)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusQueued)))
	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusRunning)))

	d := receive(t, sub.Client())
	run, err := d.Event.DecodeRun()
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assertEmpty(t, sub.Client())
}

func TestRegistry_DeliversOncePerClient(t *testing.T) {
	r := newTestRegistry(t, 8)
	f, err := CompileFilter("location == 'Austin, TX'")
	require.NoError(t, err)

	s1, err := r.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	s2, err := r.Subscribe("c1", model.TableWorkflowRuns, f)
	require.NoError(t, err)
	assert.Same(t, s1.Client(), s2.Client())

	require.NoError(t, r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusRunning)))
	receive(t, s1.Client())
	assertEmpty(t, s1.Client())
}

func TestRegistry_OverflowDropsOnlySlowClient(t *testing.T) {
	r := newTestRegistry(t, 1)
	ctx := context.Background()

	slow, err := r.Subscribe("slow", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	_, err = slow.Client().Subscribe(model.TableProspects, nil)
	require.NoError(t, err)
	fast, err := r.Subscribe("fast", model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusQueued)))
	receive(t, fast.Client())

	require.NoError(t, r.Publish(ctx, runEvent(t, "run-1", model.RunStatusRunning)))
	receive(t, fast.Client())

	select {
	case <-slow.Client().Done():
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
	assert.True(t, IsOverflow(slow.Client().Err()))
	assert.False(t, slow.Active())
	assert.Equal(t, 0, slow.Client().Subscriptions())
	assert.True(t, fast.Active())
	assert.NoError(t, fast.Client().Err())

	clients, subs := r.Stats()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 1, subs)
}

func TestRegistry_ClosedClientDoesNotResurrect(t *testing.T) {
	r := newTestRegistry(t, 4)
	c, err := r.Client("c1")
	require.NoError(t, err)
	sub, err := c.Subscribe(model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	c.Close(nil)
	assert.ErrorIs(t, c.Err(), ErrClientClosed)
	assert.False(t, sub.Active())

	_, err = c.Subscribe(model.TableProspects, nil)
	assert.ErrorIs(t, err, ErrClientClosed)

	again, err := r.Client("c1")
	require.NoError(t, err)
	assert.NotSame(t, c, again)

	require.NoError(t, r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusRunning)))
	assertEmpty(t, c)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, 4)
	sub, err := r.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	r.Unsubscribe(sub)
	sub.Client().Close(nil)
	sub.Close()

	assert.False(t, sub.Active())
	_, subs := r.Stats()
	assert.Equal(t, 0, subs)
}

func TestRegistry_UnknownTable(t *testing.T) {
	r := newTestRegistry(t, 4)
	_, err := r.Subscribe("c1", model.Table("audiences"), nil)
	assert.ErrorIs(t, err, ErrUnknownTable)

	err = r.Publish(context.Background(), model.ChangeEvent{Table: "audiences", Operation: model.OperationInsert, Row: []byte(`{}`)})
	assert.Error(t, err)
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(Options{})
	sub, err := r.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	r.Close()
	r.Close()

	var de *DeliveryError
	require.ErrorAs(t, sub.Client().Err(), &de)
	assert.Equal(t, ReasonShutdown, de.Reason)
	assert.Equal(t, "c1", de.ClientID)

	_, err = r.Subscribe("c2", model.TableWorkflowRuns, nil)
	assert.ErrorIs(t, err, ErrRegistryClosed)
	err = r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusRunning))
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_PublishHonorsContext(t *testing.T) {
	r := newTestRegistry(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An already cancelled context may still win the race against the loop;
	// either outcome must leave the registry usable.
	_ = r.Publish(ctx, runEvent(t, "run-1", model.RunStatusRunning))

	sub, err := r.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	require.NoError(t, r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusCompleted)))
	receive(t, sub.Client())
}

func TestClient_DropTransport(t *testing.T) {
	r := newTestRegistry(t, 4)
	c, err := r.Client("c1")
	require.NoError(t, err)

	c.Drop(ReasonTransport, context.DeadlineExceeded)
	var de *DeliveryError
	require.ErrorAs(t, c.Err(), &de)
	assert.Equal(t, ReasonTransport, de.Reason)
	assert.ErrorIs(t, c.Err(), context.DeadlineExceeded)
	assert.False(t, IsOverflow(c.Err()))
}

func TestRegistry_DropAll(t *testing.T) {
	r := newTestRegistry(t, 4)
	a, err := r.Subscribe("a", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	b, err := r.Subscribe("b", model.TableProspects, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, r.DropAll(ReasonResync, nil))

	for _, c := range []*Client{a.Client(), b.Client()} {
		var de *DeliveryError
		require.ErrorAs(t, c.Err(), &de)
		assert.Equal(t, ReasonResync, de.Reason)
	}
	clients, subs := r.Stats()
	assert.Zero(t, clients)
	assert.Zero(t, subs)

	// The registry stays open for reconnecting clients.
	c, err := r.Subscribe("a", model.TableWorkflowRuns, nil)
	require.NoError(t, err)
	require.NoError(t, r.Publish(context.Background(), runEvent(t, "run-1", model.RunStatusRunning)))
	id, err := receive(t, c.Client()).Event.RowID()
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}
