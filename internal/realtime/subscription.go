package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/target/prospector/internal/domain/model"
)

// Subscription is one client's interest in one table, optionally narrowed by
// a filter. State moves from active to closed and never back.
type Subscription struct {
	table  model.Table
	filter Filter
	client *Client
	reg    *Registry

	once   sync.Once
	closed atomic.Bool
}

// Table returns the subscribed table.
func (s *Subscription) Table() model.Table { return s.table }

// Client returns the owning client.
func (s *Subscription) Client() *Client { return s.client }

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return !s.closed.Load() }

// Close stops delivery for this subscription. Safe to call repeatedly and
// after the client has gone away.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.reg.removeSubscription(s)
		s.client.detach(s)
	})
}

// matches evaluates the filter against a decoded row. A nil filter matches.
func (s *Subscription) matches(row map[string]any) (bool, error) {
	if s.filter == nil {
		return true, nil
	}
	return s.filter.Match(row)
}
