package realtime

import (
	"encoding/json"
	"sync"

	"github.com/target/prospector/internal/domain/model"
)

// Delivery is one event in a client's mailbox. Seq increases by one per
// delivery to that client and is used as the SSE event id.
// View is the enriched view filters were evaluated on, when one was built.
type Delivery struct {
	Seq   uint64
	Event model.ChangeEvent
	View  json.RawMessage
}

// Client is the mailbox shared by every subscription of one connected
// observer. It is closed exactly once, either by its owner or by the registry
// when delivery fails, and a closed client never receives again.
type Client struct {
	id  string
	reg *Registry
	out chan Delivery

	done chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
	seq    uint64
	subs   map[*Subscription]struct{}
}

func newClient(id string, reg *Registry, buffer int) *Client {
	return &Client{
		id:   id,
		reg:  reg,
		out:  make(chan Delivery, buffer),
		done: make(chan struct{}),
		subs: make(map[*Subscription]struct{}),
	}
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// Events returns the mailbox. It is never closed; select on Done as well.
func (c *Client) Events() <-chan Delivery { return c.out }

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns nil while the client is open. After Close it returns the error
// the client was closed with, or ErrClientClosed for a normal close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		return nil
	}
	if c.err == nil {
		return ErrClientClosed
	}
	return c.err
}

// Subscribe adds a subscription for table to this client.
func (c *Client) Subscribe(table model.Table, filter Filter) (*Subscription, error) {
	return c.reg.subscribe(c, table, filter)
}

// Subscriptions returns the number of open subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Drop closes the client with a DeliveryError for reason.
func (c *Client) Drop(reason DeliveryReason, err error) {
	c.Close(&DeliveryError{ClientID: c.id, Reason: reason, Err: err})
}

// Close closes the client and all of its subscriptions. It is safe to call
// more than once; only the first error is kept.
func (c *Client) Close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	close(c.done)
	subs := make([]*Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	c.reg.removeClient(c, err)
}

// deliver appends evt to the mailbox without blocking. A full mailbox drops
// the client.
func (c *Client) deliver(evt model.ChangeEvent, view json.RawMessage) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.seq++
	select {
	case c.out <- Delivery{Seq: c.seq, Event: evt, View: view}:
		c.mu.Unlock()
		return true
	default:
	}
	c.mu.Unlock()

	c.Drop(ReasonOverflow, nil)
	return false
}

// attach registers s with the client. It fails once the client is closed.
func (c *Client) attach(s *Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.subs[s] = struct{}{}
	return nil
}

func (c *Client) detach(s *Subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
