// Package realtime fans committed change events out to connected observers.
//
// A Registry owns one dispatch loop per table. Publish hands an event to the
// table's loop and waits until it has been offered to every matching client.
// Each client has a bounded mailbox; a client that cannot keep up is closed
// with an overflow DeliveryError and is expected to reconnect and resnapshot.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/observability/metrics"
)

const (
	defaultClientBuffer   = 256
	defaultTopicBuffer    = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Options configures a Registry.
type Options struct {
	ClientBuffer   int
	TopicBuffer    int
	PublishTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// ViewFunc builds the enriched view of a change, the same document snapshots
// are filtered on.
type ViewFunc func(ctx context.Context, evt model.ChangeEvent) (json.RawMessage, error)

type envelope struct {
	evt  model.ChangeEvent
	done chan struct{}
}

type topic struct {
	table model.Table
	in    chan envelope
}

// Registry holds clients and their subscriptions.
type Registry struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	clients map[string]*Client
	subs    map[model.Table]map[*Subscription]struct{}
	topics  map[model.Table]*topic
	view    ViewFunc

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry starts a dispatch loop for every change table.
func NewRegistry(opts Options) *Registry {
	if opts.ClientBuffer < 1 {
		opts.ClientBuffer = defaultClientBuffer
	}
	if opts.TopicBuffer < 1 {
		opts.TopicBuffer = defaultTopicBuffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		opts:    opts,
		logger:  logger.With("component", "realtime_registry"),
		metrics: opts.Metrics,
		clients: make(map[string]*Client),
		subs:    make(map[model.Table]map[*Subscription]struct{}),
		topics:  make(map[model.Table]*topic),
		stop:    make(chan struct{}),
	}
	for _, t := range model.Tables() {
		tp := &topic{table: t, in: make(chan envelope, opts.TopicBuffer)}
		r.topics[t] = tp
		r.subs[t] = make(map[*Subscription]struct{})
		r.wg.Add(1)
		go r.loop(tp)
	}
	return r
}

// SetView makes filters evaluate against the view built by fn instead of the
// raw row image. Events whose view cannot be built fall back to the row.
func (r *Registry) SetView(fn ViewFunc) {
	r.mu.Lock()
	r.view = fn
	r.mu.Unlock()
}

// NewClientID returns a fresh random client id.
func NewClientID() string { return uuid.NewString() }

// Client returns the open client with the given id, creating it if needed.
func (r *Registry) Client(clientID string) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if c, ok := r.clients[clientID]; ok && !c.isClosed() {
		return c, nil
	}
	c := newClient(clientID, r, r.opts.ClientBuffer)
	r.clients[clientID] = c
	r.metrics.ClientConnected(1)
	return c, nil
}

// Subscribe registers interest of clientID in table. The filter may be nil.
func (r *Registry) Subscribe(clientID string, table model.Table, filter Filter) (*Subscription, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	c, err := r.Client(clientID)
	if err != nil {
		return nil, err
	}
	return r.subscribe(c, table, filter)
}

// Unsubscribe closes sub. It is idempotent.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

func (r *Registry) subscribe(c *Client, table model.Table, filter Filter) (*Subscription, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	s := &Subscription{table: table, filter: filter, client: c, reg: r}
	if err := c.attach(s); err != nil {
		return nil, err
	}
	r.subs[table][s] = struct{}{}
	r.metrics.SubscriptionsChanged(1)
	return s, nil
}

func (r *Registry) removeSubscription(s *Subscription) {
	r.mu.Lock()
	if _, ok := r.subs[s.table][s]; ok {
		delete(r.subs[s.table], s)
		r.metrics.SubscriptionsChanged(-1)
	}
	r.mu.Unlock()
}

func (r *Registry) removeClient(c *Client, cause error) {
	r.mu.Lock()
	if cur, ok := r.clients[c.id]; ok && cur == c {
		delete(r.clients, c.id)
	}
	r.mu.Unlock()
	r.metrics.ClientConnected(-1)

	if de, ok := cause.(*DeliveryError); ok {
		r.metrics.ClientDropped(string(de.Reason))
		r.logger.Warn("client dropped", "client_id", c.id, "reason", de.Reason, "error", de.Err)
	}
}

// Stats returns the number of open clients and subscriptions.
func (r *Registry) Stats() (clients, subscriptions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, subs := range r.subs {
		subscriptions += len(subs)
	}
	return len(r.clients), subscriptions
}

// Publish fans evt out to every matching subscription and returns once every
// recipient has been offered the event. Delivery problems affect only the
// recipient; Publish reports only registry shutdown, an invalid event or ctx
// expiry.
func (r *Registry) Publish(ctx context.Context, evt model.ChangeEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	r.mu.RLock()
	closed := r.closed
	tp := r.topics[evt.Table]
	r.mu.RUnlock()
	if closed {
		return ErrRegistryClosed
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()

	env := envelope{evt: evt, done: make(chan struct{})}
	select {
	case tp.in <- env:
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s event: %w", evt.Table, ctx.Err())
	case <-r.stop:
		return ErrRegistryClosed
	}

	select {
	case <-env.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fan out %s event: %w", evt.Table, ctx.Err())
	case <-r.stop:
		return ErrRegistryClosed
	}
}

func (r *Registry) loop(tp *topic) {
	defer r.wg.Done()
	for {
		select {
		case env := <-tp.in:
			r.fanout(env.evt)
			close(env.done)
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) fanout(evt model.ChangeEvent) {
	start := time.Now()

	r.mu.RLock()
	subs := make([]*Subscription, 0, len(r.subs[evt.Table]))
	filtered := false
	for s := range r.subs[evt.Table] {
		subs = append(subs, s)
		if s.filter != nil {
			filtered = true
		}
	}
	viewFn := r.view
	r.mu.RUnlock()

	var (
		row  map[string]any
		view json.RawMessage
	)
	if filtered {
		row, view = r.filterDocument(evt, viewFn)
	}

	delivered := make(map[*Client]bool, len(subs))
	for _, s := range subs {
		if !s.Active() || delivered[s.client] {
			continue
		}
		if s.filter != nil {
			if row == nil {
				continue
			}
			ok, err := s.matches(row)
			if err != nil {
				r.logger.Debug("filter evaluation failed", "table", evt.Table, "filter", s.filter.String(), "error", err)
				continue
			}
			if !ok {
				continue
			}
		}
		delivered[s.client] = true
		s.client.deliver(evt, view)
	}

	r.metrics.ObserveFanout(string(evt.Table), time.Since(start))
	r.logger.Debug("event fanned out", "table", evt.Table, "operation", evt.Operation, "recipients", len(delivered))
}

// filterDocument returns what filters are evaluated on: the view when one can
// be built, the row image otherwise. A nil document skips filtered
// subscriptions.
func (r *Registry) filterDocument(evt model.ChangeEvent, viewFn ViewFunc) (map[string]any, json.RawMessage) {
	if viewFn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.PublishTimeout)
		view, err := viewFn(ctx, evt)
		cancel()
		if err == nil {
			if doc, derr := decodeRow(view); derr == nil {
				return doc, view
			}
		} else {
			r.logger.Debug("view unavailable; filtering on row image", "table", evt.Table, "error", err)
		}
	}
	row, err := decodeRow(evt.Row)
	if err != nil {
		r.logger.Warn("undecodable row image; filtered subscriptions skipped", "table", evt.Table, "error", err)
		return nil, nil
	}
	return row, nil
}

// DropAll closes every open client with reason and returns how many were
// dropped. New clients may connect as soon as it returns.
func (r *Registry) DropAll(reason DeliveryReason, err error) int {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Drop(reason, err)
	}
	return len(clients)
}

// Close stops the dispatch loops and closes every client with a shutdown
// DeliveryError. Publish and Subscribe fail afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	r.wg.Wait()
	for _, c := range clients {
		c.Drop(ReasonShutdown, nil)
	}
}

