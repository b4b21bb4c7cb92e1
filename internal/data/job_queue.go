package data

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// JobQueueConfig holds configuration options for the job queue.
type JobQueueConfig struct {
	// RetryDelay is how long a failed job stays invisible before redelivery.
	RetryDelay   time.Duration
	Logger       *slog.Logger
	TimeProvider TimeProvider
	// Listener supplies dedicated connections for LISTEN. Without it
	// WaitForNotification sleeps for fallbackPollInterval, which turns
	// long-polling reservers into pollers.
	Listener pgxutil.Acquirer
}

const fallbackPollInterval = time.Second

// JobQueue is the Postgres-backed at-least-once queue for run jobs.
type JobQueue struct {
	DB           pgxutil.DB
	cfg          JobQueueConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobQueue creates a new JobQueue.
func NewJobQueue(db pgxutil.DB, cfg JobQueueConfig) *JobQueue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		DB:           db,
		cfg:          cfg,
		timeProvider: timeProviderOrDefault(cfg.TimeProvider),
		logger:       logger.With("component", "job_queue"),
	}
}

// reserveSQL claims the oldest visible job. SKIP LOCKED lets concurrent
// workers pass over rows another reservation is holding.
const reserveSQL = `
	WITH cte AS (
		SELECT id FROM worker_jobs
		WHERE queue = $1 AND status = 'pending' AND visible_at <= $2
		ORDER BY visible_at ASC, enqueued_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE worker_jobs j
	SET status = 'reserved',
		attempts = j.attempts + 1,
		lease_expires_at = $3,
		updated_at = $2
	FROM cte
	WHERE j.id = cte.id
	RETURNING j.id, j.queue, j.run_id, j.payload, j.status, j.attempts, j.max_attempts, j.last_error,
		j.visible_at, j.lease_expires_at, j.enqueued_at, j.updated_at`

// Reserve leases the next visible job on queue for visibilitySeconds.
// Expired reservations are recovered first so a crashed worker's job is redelivered.
func (q *JobQueue) Reserve(ctx context.Context, queue string, visibilitySeconds int) (*model.Job, error) {
	if visibilitySeconds <= 0 {
		return nil, errors.New("visibilitySeconds must be positive")
	}
	if _, err := q.requeueExpired(ctx, queue, 0); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	now := q.timeProvider.Now()
	lease := now.Add(time.Duration(visibilitySeconds) * time.Second)

	var job *model.Job
	err := pgxutil.WithTx(ctx, q.DB, pgxutil.TxConfig{Opts: pgxutil.ReadCommitted, Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, reserveSQL, queue, now, lease)
		if err != nil {
			return fmt.Errorf("reserve job: %w", err)
		}
		j, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNoJobsAvailable
		}
		if err != nil {
			return fmt.Errorf("reserve job: %w", err)
		}
		job = j
		return nil
	}})
	if err != nil {
		return nil, err
	}

	q.logger.DebugContext(ctx, "job reserved", "job_id", job.ID, "run_id", job.RunID, "attempt", job.Attempts)
	return job, nil
}

// WaitForNotification blocks until a job is announced on queue or ctx ends.
func (q *JobQueue) WaitForNotification(ctx context.Context, queue string) error {
	if q.cfg.Listener == nil {
		t := time.NewTimer(fallbackPollInterval)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	_, err := pgxutil.WaitForNotification(ctx, q.cfg.Listener, JobChannel(queue))
	return err
}

// Heartbeat extends the lease on a reserved job. It returns false once the
// job is no longer reserved, which tells the worker its lease was lost.
func (q *JobQueue) Heartbeat(ctx context.Context, id string, visibilitySeconds int) (bool, error) {
	if visibilitySeconds <= 0 {
		return false, errors.New("visibilitySeconds must be positive")
	}
	if !validUUID(id) {
		return false, nil
	}
	now := q.timeProvider.Now()
	tag, err := q.DB.Exec(ctx, `
		UPDATE worker_jobs
		SET lease_expires_at = $2, updated_at = $3
		WHERE id = $1 AND status = 'reserved'`,
		id, now.Add(time.Duration(visibilitySeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ack removes a job. Acking a job that is already gone returns false.
func (q *JobQueue) Ack(ctx context.Context, id string) (bool, error) {
	if !validUUID(id) {
		return false, nil
	}
	tag, err := q.DB.Exec(ctx, `DELETE FROM worker_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ack job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Fail releases a reserved job for a delayed retry, or dead-letters it once
// it has used every attempt.
func (q *JobQueue) Fail(ctx context.Context, id, errMsg string) (*model.FailJobResult, error) {
	res := &model.FailJobResult{}
	if !validUUID(id) {
		return res, nil
	}
	now := q.timeProvider.Now()
	var status model.JobStatus
	err := q.DB.QueryRow(ctx, `
		UPDATE worker_jobs SET
			status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'pending' END,
			visible_at = CASE WHEN attempts >= max_attempts THEN visible_at ELSE $2 END,
			lease_expires_at = NULL,
			last_error = $3,
			updated_at = $4
		WHERE id = $1 AND status = 'reserved'
		RETURNING status`,
		id, now.Add(q.cfg.RetryDelay), errMsg, now).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	res.Found = true
	res.Dead = status == model.JobStatusDead
	if res.Dead {
		q.logger.WarnContext(ctx, "job dead-lettered", "job_id", id, "error", errMsg)
	}
	return res, nil
}

// GetByID retrieves a job by id.
func (q *JobQueue) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("job %q not found", id)
	}
	rows, err := q.DB.Query(ctx, `SELECT `+jobColumns+` FROM worker_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// Stats counts jobs on queue by status.
func (q *JobQueue) Stats(ctx context.Context, queue string) (*model.JobStats, error) {
	var s model.JobStats
	err := q.DB.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'reserved'),
			count(*) FILTER (WHERE status = 'dead')
		FROM worker_jobs
		WHERE queue = $1`, queue).Scan(&s.Pending, &s.Reserved, &s.Dead)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &s, nil
}

// Advisory lock namespace for requeueExpired, one minor key per queue.
const advisoryLockRequeueMajor int64 = 2001

func advisoryLockRequeueMinor(queue string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(queue))
	return int64(h.Sum32() & uint32(math.MaxInt32))
}

// requeueExpired recovers reservations whose lease has lapsed. Only one
// caller per queue does the work at a time; the others skip it.
// A zero batchSize means no limit.
func (q *JobQueue) requeueExpired(ctx context.Context, queue string, batchSize int) (int64, error) {
	var affected int64
	err := pgxutil.WithTx(ctx, q.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)`,
			advisoryLockRequeueMajor, advisoryLockRequeueMinor(queue)).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		var limit any
		if batchSize > 0 {
			limit = batchSize
		}
		now := q.timeProvider.Now()
		tag, err := tx.Exec(ctx, `
			UPDATE worker_jobs SET
				status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'pending' END,
				last_error = CASE WHEN attempts >= max_attempts THEN 'lease expired' ELSE last_error END,
				lease_expires_at = NULL,
				visible_at = $2,
				updated_at = $2
			WHERE id IN (
				SELECT id FROM worker_jobs
				WHERE queue = $1 AND status = 'reserved' AND lease_expires_at < $2
				ORDER BY lease_expires_at
				LIMIT $3
				FOR UPDATE SKIP LOCKED
			)`, queue, now, limit)
		if err != nil {
			return fmt.Errorf("requeue expired: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	}})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		q.logger.InfoContext(ctx, "requeued expired jobs", "queue", queue, "count", affected)
	}
	return affected, nil
}
