package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// RunRepo provides worker-facing run operations.
type RunRepo struct {
	DB           pgxutil.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// RunRepoOptions configures NewRunRepo.
type RunRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db pgxutil.DB, opts RunRepoOptions) *RunRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       logger.With("component", "run_repo"),
	}
}

// GetByID retrieves a run by id.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*model.WorkflowRun, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("run %q not found", id)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	run, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.WorkflowRun])
	if err != nil {
		if mapped := apperrors.MapDBError(err); apperrors.IsNotFound(mapped) {
			return nil, apperrors.NotFoundf("run %q not found", id)
		}
		return nil, fmt.Errorf("collect run: %w", err)
	}
	return run, nil
}

// transitionSQL applies a status change only when the current status is one
// the target may be reached from. started_at and finished_at keep the first
// stamp so a redelivered job cannot move them.
const transitionSQL = `
	UPDATE workflow_runs SET
		status = $2,
		started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $3) ELSE started_at END,
		finished_at = CASE WHEN $2 IN ('completed', 'failed') THEN COALESCE(finished_at, $3) ELSE finished_at END,
		error = COALESCE($4, error),
		updated_at = $3
	WHERE id = $1 AND status = ANY($5::text[])
	RETURNING ` + runColumns

// Transition applies a worker status report.
func (r *RunRepo) Transition(ctx context.Context, req model.TransitionRunRequest) (*model.TransitionResult, error) {
	if !req.Status.Valid() {
		return nil, apperrors.ValidationField("status", "status must be one of queued, running, completed, failed")
	}
	if !validUUID(req.RunID) {
		return nil, apperrors.NotFoundf("run %q not found", req.RunID)
	}

	prior := make([]string, 0, 2)
	for _, s := range model.PriorStatuses(req.Status) {
		prior = append(prior, string(s))
	}

	rows, err := r.DB.Query(ctx, transitionSQL,
		req.RunID, string(req.Status), r.timeProvider.Now(), req.Error, prior)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	run, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.WorkflowRun])
	if err == nil {
		r.logger.DebugContext(ctx, "run transitioned", "run_id", run.ID, "status", run.Status)
		return &model.TransitionResult{Run: run, Changed: true}, nil
	}
	if mapped := apperrors.MapDBError(err); !apperrors.IsNotFound(mapped) {
		return nil, fmt.Errorf("transition run: %w", err)
	}

	// Nothing matched the guard: the run is missing, already there, or past it.
	current, getErr := r.GetByID(ctx, req.RunID)
	if getErr != nil {
		return nil, getErr
	}
	return resolveRejectedTransition(current, req.Status)
}

// resolveRejectedTransition decides what a guarded update that touched no row means.
func resolveRejectedTransition(current *model.WorkflowRun, target model.RunStatus) (*model.TransitionResult, error) {
	if current.Status == target {
		return &model.TransitionResult{Run: current, Changed: false}, nil
	}
	return nil, apperrors.Conflictf("run %s cannot move from %s to %s", current.ID, current.Status, target)
}
