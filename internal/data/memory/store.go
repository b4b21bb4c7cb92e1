// Package memory is an in-process implementation of the store, queue and
// projection ports. It backs STORE_DRIVER=memory and the service tests, and
// enforces the same invariants as the Postgres schema: foreign keys,
// cascades, unique constraints and guarded status transitions.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/domain/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Options configures a Store.
type Options struct {
	TimeProvider data.TimeProvider
	// RetryDelay is how long a failed job stays invisible.
	RetryDelay time.Duration
}

// row wraps a stored value with its insertion sequence, the tie-breaker
// for rows sharing a created_at.
type row[T any] struct {
	seq uint64
	v   T
}

// Store holds every table behind one mutex so multi-table writes are atomic.
type Store struct {
	mu         sync.Mutex
	clock      data.TimeProvider
	retryDelay time.Duration
	seq        uint64

	audiences map[string]*row[model.Audience]
	runs      map[string]*row[model.WorkflowRun]
	prospects map[string]*row[model.Prospect]
	analyses  map[string]model.SiteAnalysis // by prospect id
	contacts  map[string][]model.Contact    // by prospect id
	jobs      map[string]*row[model.Job]

	// signals is closed and replaced whenever a job becomes visible on a queue.
	signals map[string]chan struct{}
}

// New creates an empty Store.
func New(opts Options) *Store {
	clock := opts.TimeProvider
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	return &Store{
		clock:      clock,
		retryDelay: opts.RetryDelay,
		audiences:  make(map[string]*row[model.Audience]),
		runs:       make(map[string]*row[model.WorkflowRun]),
		prospects:  make(map[string]*row[model.Prospect]),
		analyses:   make(map[string]model.SiteAnalysis),
		contacts:   make(map[string][]model.Contact),
		jobs:       make(map[string]*row[model.Job]),
		signals:    make(map[string]chan struct{}),
	}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func newID() string { return uuid.NewString() }

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// newestFirst orders rows by created_at desc, then by insertion desc.
func newestFirst[T any](rows []*row[T], created func(T) time.Time) {
	slices.SortFunc(rows, func(a, b *row[T]) int {
		if c := created(b.v).Compare(created(a.v)); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
}

// signal wakes every reserver waiting on queue. Caller holds s.mu.
func (s *Store) signal(queue string) {
	if ch, ok := s.signals[queue]; ok {
		close(ch)
	}
	s.signals[queue] = make(chan struct{})
}

func (s *Store) waitChan(queue string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.signals[queue]
	if !ok {
		ch = make(chan struct{})
		s.signals[queue] = ch
	}
	return ch
}

// waitSignal blocks until queue is signalled or ctx ends.
func (s *Store) waitSignal(ctx context.Context, queue string) error {
	select {
	case <-s.waitChan(queue):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ptr[T any](v T) *T { return &v }
