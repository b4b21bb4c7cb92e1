package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/observability/metrics"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Logger  *slog.Logger          // Optional: structured logger
	Metrics *metrics.Metrics      // Optional: Prometheus collectors
}

// ReaperService keeps the run queue healthy.
//
// This service manages:
// - Returning expired reservations to pending, or dead-lettering them.
// - Deleting dead jobs once they have been kept long enough to inspect.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"dead_job_max_age", opts.Config.DeadJobMaxAge,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Replicas started together should not all reap at the same instant.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps for a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// RunOnce performs one cleanup pass. Both steps run even if the first fails.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()

	requeued, requeueErr := s.requeueExpired(ctx)
	deleted, deleteErr := s.deleteDeadJobs(ctx)

	var errs []error
	if requeueErr != nil {
		errs = append(errs, fmt.Errorf("requeue expired jobs: %w", requeueErr))
	}
	if deleteErr != nil {
		errs = append(errs, fmt.Errorf("delete dead jobs: %w", deleteErr))
	}

	s.metrics.JobEvent(metrics.JobRequeued, requeued)
	s.metrics.JobEvent(metrics.JobDeleted, deleted)

	err := errors.Join(errs...)
	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case requeued+deleted == 0:
		result = metrics.ResultNoop
	}
	s.metrics.ReaperCycle(result, time.Since(start))

	if err != nil {
		if isContextCancellation(err) && ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// requeueExpired drains expired reservations in batches.
func (s *ReaperService) requeueExpired(ctx context.Context) (int64, error) {
	total, err := s.drain(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.RequeueExpired(ctx, s.config.BatchSize)
	})
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued expired jobs", "count", total)
	}
	return total, err
}

// deleteDeadJobs removes dead jobs older than the configured age in batches.
func (s *ReaperService) deleteDeadJobs(ctx context.Context) (int64, error) {
	total, err := s.drain(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteDeadJobs(ctx, s.config.DeadJobMaxAge, s.config.BatchSize)
	})
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted dead jobs", "count", total, "max_age", s.config.DeadJobMaxAge)
	}
	return total, err
}

// drain repeats fn until it processes a short batch.
func (s *ReaperService) drain(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := fn(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(s.config.BatchSize) || n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
