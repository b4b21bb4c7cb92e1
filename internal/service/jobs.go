package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/prospector/internal/core"
	domainjob "github.com/target/prospector/internal/domain/job"
	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/observability/notify"
)

const (
	defaultMaxLongPoll = 25 * time.Second
	// recheckInterval bounds how long a long-poll trusts the notifier before
	// trying the queue again, in case a notification was lost.
	recheckInterval = 5 * time.Second
	alertTimeout    = 30 * time.Second
)

// FailureNotifier receives an alert for every dead-lettered job.
type FailureNotifier interface {
	NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) error
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Queue           core.JobQueue               // Required: queue store
	QueueName       string                      // Required: queue to serve
	Visibility      *domainjob.VisibilityPolicy // Required: lease bounds
	Notifier        domainjob.Notifier          // Optional: defaults to a notifier over Queue
	NotifierOptions domainjob.NotifierOptions   // Optional: configure the default notifier
	MaxLongPoll     time.Duration               // Optional: cap on ReserveOptions.Wait
	FailureNotifier FailureNotifier             // Optional: dead-letter alerts
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// ReserveOptions controls a single reservation.
type ReserveOptions struct {
	// Visibility is the requested lease; zero selects the default.
	Visibility time.Duration
	// Wait enables long-polling for up to this long when the queue is empty.
	Wait time.Duration
}

// JobService is the worker-facing side of the run queue.
//
// This service manages:
// - Reservation with lease clamping and optional long-polling.
// - Lease extension, acknowledgement and failure.
// - The shared LISTEN loops that wake long-polling reservers.
type JobService struct {
	queue       core.JobQueue
	name        string
	visibility  *domainjob.VisibilityPolicy
	notifier    domainjob.Notifier
	maxLongPoll time.Duration
	alerts      FailureNotifier
	alertsWG    sync.WaitGroup
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	if opts.QueueName == "" {
		return nil, errors.New("QueueName is required")
	}
	if opts.Visibility == nil {
		return nil, errors.New("VisibilityPolicy is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Queue
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	maxLongPoll := opts.MaxLongPoll
	if maxLongPoll <= 0 {
		maxLongPoll = defaultMaxLongPoll
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "job_service")
	logger.Debug("JobService initialized",
		"queue", opts.QueueName,
		"default_visibility", opts.Visibility.Default(),
		"max_long_poll", maxLongPoll,
	)

	return &JobService{
		queue:       opts.Queue,
		name:        opts.QueueName,
		visibility:  opts.Visibility,
		notifier:    notifier,
		maxLongPoll: maxLongPoll,
		alerts:      opts.FailureNotifier,
		logger:      logger,
		metrics:     opts.Metrics,
	}, nil
}

// QueueName returns the queue this service reserves from.
func (s *JobService) QueueName() string { return s.name }

// Reserve leases the oldest visible job. When the queue is empty and
// opts.Wait is positive it waits for a new job to be announced, up to
// MaxLongPoll. It returns model.ErrNoJobsAvailable when nothing arrives.
func (s *JobService) Reserve(ctx context.Context, opts ReserveOptions) (*model.Job, error) {
	decision := s.visibility.Resolve(opts.Visibility)
	if decision.Clamped() {
		s.logger.DebugContext(ctx, "clamped requested visibility",
			"requested", decision.Requested,
			"seconds", decision.Seconds,
		)
	}

	if opts.Wait <= 0 {
		return s.reserveOnce(ctx, decision.Seconds)
	}

	wait := min(opts.Wait, s.maxLongPoll)
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	// Subscribe before the first attempt so an enqueue racing the empty
	// read still wakes us.
	unsubscribe, wake := s.notifier.Subscribe(s.name)
	defer unsubscribe()

	recheck := time.NewTicker(recheckInterval)
	defer recheck.Stop()

	for {
		job, err := s.reserveOnce(ctx, decision.Seconds)
		if !errors.Is(err, model.ErrNoJobsAvailable) {
			return job, err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, model.ErrNoJobsAvailable
		case _, ok := <-wake:
			if !ok {
				// Notifier stopped; fall back to the recheck ticker.
				wake = nil
			}
		case <-recheck.C:
		}
	}
}

func (s *JobService) reserveOnce(ctx context.Context, seconds int) (*model.Job, error) {
	job, err := s.queue.Reserve(ctx, s.name, seconds)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("reserve job: %w", err)
	}
	s.metrics.JobEvent(metrics.JobReserved, 1)
	s.logger.DebugContext(ctx, "job reserved",
		"id", job.ID,
		"run_id", job.RunID,
		"attempt", job.Attempts,
		"lease_seconds", seconds,
	)
	return job, nil
}

// Heartbeat extends a reservation. False means the lease was lost.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.visibility.Resolve(extend)
	ok, err := s.queue.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}
	if ok {
		s.logger.DebugContext(ctx, "job lease extended", "id", id, "extend_seconds", decision.Seconds)
	}
	return ok, nil
}

// Ack deletes a finished job. Acking a job that is already gone returns false.
func (s *JobService) Ack(ctx context.Context, id string) (bool, error) {
	ok, err := s.queue.Ack(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ack job %s: %w", id, err)
	}
	if ok {
		s.metrics.JobEvent(metrics.JobAcked, 1)
		s.logger.DebugContext(ctx, "job acked", "id", id)
	}
	return ok, nil
}

// Fail releases a reserved job for retry, or dead-letters it once its
// attempts are used up.
func (s *JobService) Fail(ctx context.Context, id, message string) (*model.FailJobResult, error) {
	res, err := s.queue.Fail(ctx, id, message)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", id, err)
	}
	switch {
	case !res.Found:
	case res.Dead:
		s.metrics.JobEvent(metrics.JobDead, 1)
		s.logger.WarnContext(ctx, "job dead-lettered", "id", id, "error", message)
		s.alertDeadLetter(ctx, id, message)
	default:
		s.metrics.JobEvent(metrics.JobRetried, 1)
		s.logger.InfoContext(ctx, "job released for retry", "id", id, "error", message)
	}
	return res, nil
}

// alertDeadLetter notifies in the background so the worker's fail call is
// not held up by slow sinks. Close waits for outstanding alerts.
func (s *JobService) alertDeadLetter(ctx context.Context, id, message string) {
	if s.alerts == nil {
		return
	}
	payload := notify.JobFailurePayload{
		JobID:      id,
		Queue:      s.name,
		Error:      message,
		ErrorClass: "dead_letter",
		Severity:   notify.SeverityCritical,
		OccurredAt: time.Now().UTC(),
	}
	if job, err := s.queue.GetByID(ctx, id); err == nil {
		payload.RunID = job.RunID
		payload.Attempts = job.Attempts
		payload.Queue = job.Queue
	} else {
		s.logger.WarnContext(ctx, "load dead-lettered job for alert", "id", id, "error", err)
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	s.alertsWG.Add(1)
	go func() {
		defer s.alertsWG.Done()
		defer cancel()
		if err := s.alerts.NotifyJobFailure(alertCtx, payload); err != nil {
			s.logger.ErrorContext(alertCtx, "dead-letter alert delivery failed",
				"id", payload.JobID,
				"run_id", payload.RunID,
				"error", err,
			)
		}
	}()
}

// GetByID returns a job.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	return s.queue.GetByID(ctx, id)
}

// Stats returns job counts by status.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.queue.Stats(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// Close stops the notifier's listeners and waits for pending alerts.
func (s *JobService) Close() {
	s.notifier.StopAll()
	s.alertsWG.Wait()
}
