// Package failurenotifier fans dead-letter alerts out to the configured sinks.
package failurenotifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/target/prospector/internal/observability/notify"
)

// SinkRegistration names a sink for logs and errors.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service delivers each payload to every registered sink.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService drops registrations without a sink and names anonymous ones.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{logger: logger.With("component", "failure_notifier")}
	for i, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = fmt.Sprintf("sink-%d", i)
		}
		svc.sinks = append(svc.sinks, entry)
	}
	return svc
}

// NotifyJobFailure sends payload to all sinks at once and waits for them.
// One sink failing does not stop the others; the returned error joins every
// failure, each prefixed with its sink name.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	if !s.Enabled() {
		return nil
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	errs := make([]error, len(s.sinks))
	var wg sync.WaitGroup
	for i, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				errs[i] = fmt.Errorf("%s: %w", entry.Name, err)
			}
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err == nil {
		s.logger.DebugContext(ctx, "dead-letter alert delivered",
			"job_id", payload.JobID,
			"sinks", len(s.sinks),
		)
	}
	return err
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
