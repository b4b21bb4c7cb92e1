package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/data/memory"
	"github.com/target/prospector/internal/domain/model"
)

const testQueue = "worker_jobs"

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*memory.Store, *data.FixedTimeProvider) {
	t.Helper()
	clock := data.NewFixedTimeProvider(testEpoch)
	return memory.New(memory.Options{TimeProvider: clock, RetryDelay: 30 * time.Second}), clock
}

func createAudience(t *testing.T, s *memory.Store, name string) *model.Audience {
	t.Helper()
	a, err := s.Audiences().Create(context.Background(), &model.CreateAudienceRequest{Name: name})
	require.NoError(t, err)
	return a
}

// recordingPublisher captures published change events.
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

func (p *recordingPublisher) Events() []model.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ChangeEvent(nil), p.events...)
}
