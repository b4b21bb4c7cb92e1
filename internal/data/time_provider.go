package data

import (
	"sync"
	"time"
)

// TimeProvider supplies "now" to repositories so SQL arguments are deterministic in tests.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using the system clock, in UTC.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider implements TimeProvider with a settable time for testing.
type FixedTimeProvider struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedTimeProvider creates a new FixedTimeProvider with the given time.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{t: t.UTC()}
}

// Now returns the fixed time.
func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Advance moves the fixed time forward.
func (f *FixedTimeProvider) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func timeProviderOrDefault(tp TimeProvider) TimeProvider {
	if tp == nil {
		return RealTimeProvider{}
	}
	return tp
}
