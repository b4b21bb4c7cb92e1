// Package job holds queue-side policies shared by the job API and its store adapters.
package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a job is announced on a queue.
type Waiter interface {
	WaitForNotification(ctx context.Context, queue string) error
}

// Notifier lets long-polling reservers sleep until a queue has new work.
type Notifier interface {
	Subscribe(queue string) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds each LISTEN so a silently dropped connection is retried.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait.
	Backoff time.Duration
}

// queueListener is the single LISTEN loop for one queue and its wakeup channels.
type queueListener struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// DefaultNotifier shares one listener per queue across all subscribers.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu     sync.Mutex
	queues map[string]*queueListener
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		queues:     make(map[string]*queueListener),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe returns a wakeup channel for queue and a func that releases it.
// Wakeups coalesce: the channel holds at most one pending signal.
func (n *DefaultNotifier) Subscribe(queue string) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ql, ok := n.queues[queue]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		ql = &queueListener{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.queues[queue] = ql
		go n.listenLoop(ctx, queue)
	}

	ch := make(chan struct{}, 1)
	ql.subs[ch] = struct{}{}

	var once sync.Once
	unsub := func() {
		once.Do(func() { n.unsubscribe(queue, ch) })
	}
	return unsub, ch
}

func (n *DefaultNotifier) unsubscribe(queue string, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ql, ok := n.queues[queue]
	if !ok {
		return
	}
	if _, ok := ql.subs[ch]; !ok {
		return
	}
	delete(ql.subs, ch)
	drainAndClose(ch)
	if len(ql.subs) == 0 {
		ql.cancel()
		delete(n.queues, queue)
	}
}

// StopAll cancels every listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for queue, ql := range n.queues {
		ql.cancel()
		for ch := range ql.subs {
			drainAndClose(ch)
		}
		delete(n.queues, queue)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, queue string) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, queue)
		cancel()

		// Wake on timeouts too; reservers re-check the table either way.
		n.broadcast(queue)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(queue string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ql, ok := n.queues[queue]
	if !ok {
		return
	}
	for ch := range ql.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose removes any buffered notifications before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
