package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

const runColumns = `id, audience_id, location, max_prospects, status, error, started_at, finished_at, created_at, updated_at`

const jobColumns = `id, queue, run_id, payload, status, attempts, max_attempts, last_error,
	visible_at, lease_expires_at, enqueued_at, updated_at`

// JobChannel is the NOTIFY channel announcing new jobs on queue.
func JobChannel(queue string) string {
	return "job_added_" + queue
}

// DispatchRepo writes a run and its job as one unit of work.
type DispatchRepo struct {
	DB           pgxutil.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// DispatchRepoOptions configures NewDispatchRepo.
type DispatchRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db pgxutil.DB, opts DispatchRepoOptions) *DispatchRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       logger.With("component", "dispatch_repo"),
	}
}

// CreateRunWithJob inserts a queued run, enqueues its job and notifies
// listeners, all in one transaction. The NOTIFY is only delivered if the
// transaction commits, so workers never wake for a job that does not exist.
func (r *DispatchRepo) CreateRunWithJob(
	ctx context.Context,
	params model.CreateRunParams,
) (*model.WorkflowRun, *model.Job, error) {
	if !validUUID(params.AudienceID) {
		return nil, nil, apperrors.NotFoundf("audience %q not found", params.AudienceID)
	}
	if params.MaxAttempts < 1 {
		params.MaxAttempts = 1
	}

	var (
		run *model.WorkflowRun
		job *model.Job
	)
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{Opts: pgxutil.ReadCommitted, Fn: func(tx pgx.Tx) error {
		if err := lockAudience(ctx, tx, params.AudienceID); err != nil {
			return err
		}

		now := r.timeProvider.Now()
		var err error
		run, err = insertRunInTx(ctx, tx, params, now)
		if err != nil {
			return err
		}
		job, err = insertJobInTx(ctx, tx, run, params, now)
		if err != nil {
			return err
		}
		return pgxutil.Notify(ctx, tx, JobChannel(params.Queue), job.ID)
	}})
	if err != nil {
		return nil, nil, err
	}

	r.logger.DebugContext(ctx, "run dispatched", "run_id", run.ID, "job_id", job.ID, "queue", job.Queue)
	return run, job, nil
}

// lockAudience verifies the audience exists and holds a key-share lock so a
// concurrent delete cannot remove it before the run row references it.
func lockAudience(ctx context.Context, tx pgx.Tx, audienceID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM audiences WHERE id = $1 FOR KEY SHARE`, audienceID).Scan(&id)
	if err != nil {
		if mapped := apperrors.MapDBError(err); apperrors.IsNotFound(mapped) {
			return apperrors.NotFoundf("audience %q not found", audienceID)
		}
		return fmt.Errorf("lock audience: %w", err)
	}
	return nil
}

func insertRunInTx(
	ctx context.Context,
	tx pgx.Tx,
	params model.CreateRunParams,
	now time.Time,
) (*model.WorkflowRun, error) {
	rows, err := tx.Query(ctx, `
		INSERT INTO workflow_runs (audience_id, location, max_prospects, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'queued', $4, $4)
		RETURNING `+runColumns,
		params.AudienceID, params.Location, params.MaxProspects, now)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	run, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.WorkflowRun])
	if err != nil {
		return nil, fmt.Errorf("collect run: %w", err)
	}
	return run, nil
}

func insertJobInTx(
	ctx context.Context,
	tx pgx.Tx,
	run *model.WorkflowRun,
	params model.CreateRunParams,
	now time.Time,
) (*model.Job, error) {
	payload, err := json.Marshal(model.RunJobPayload{
		RunID:        run.ID,
		AudienceID:   params.AudienceID,
		Location:     run.Location,
		MaxProspects: run.MaxProspects,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	rows, err := tx.Query(ctx, `
		INSERT INTO worker_jobs (queue, run_id, payload, status, max_attempts, visible_at, enqueued_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $5, $5)
		RETURNING `+jobColumns,
		params.Queue, run.ID, payload, params.MaxAttempts, now)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
	if err != nil {
		return nil, fmt.Errorf("collect job: %w", err)
	}
	return job, nil
}
