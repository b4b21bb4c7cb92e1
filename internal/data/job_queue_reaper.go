package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
const (
	advisoryLockReaperMajor      = 2000
	advisoryLockReaperDeleteDead = 1
)

// QueueReaper adapts JobQueue to the reaper's housekeeping contract for one queue.
type QueueReaper struct {
	Queue *JobQueue
	Name  string
}

// RequeueExpired recovers up to batchSize lapsed reservations.
func (r *QueueReaper) RequeueExpired(ctx context.Context, batchSize int) (int64, error) {
	return r.Queue.requeueExpired(ctx, r.Name, batchSize)
}

// DeleteDeadJobs purges dead-lettered jobs last touched before olderThan ago.
// Concurrent reapers skip the batch rather than contend for it.
func (r *QueueReaper) DeleteDeadJobs(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	q := r.Queue
	var affected int64
	err := pgxutil.WithTx(ctx, q.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1, $2)`,
			advisoryLockReaperMajor, advisoryLockReaperDeleteDead).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		cutoff := q.timeProvider.Now().Add(-olderThan)
		tag, err := tx.Exec(ctx, `
			DELETE FROM worker_jobs
			WHERE id IN (
				SELECT id FROM worker_jobs
				WHERE queue = $1 AND status = 'dead' AND updated_at < $2
				ORDER BY updated_at
				LIMIT $3
			)`, r.Name, cutoff, batchSize)
		if err != nil {
			return fmt.Errorf("delete dead jobs: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	}})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
