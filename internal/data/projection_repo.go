package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

const (
	runViewSelect = `
		SELECT r.id, r.audience_id, a.name AS audience_name, r.location, r.max_prospects,
			r.status, r.error, r.started_at, r.finished_at, r.created_at, r.updated_at
		FROM workflow_runs r
		LEFT JOIN audiences a ON a.id = r.audience_id`

	prospectViewSelect = `
		SELECT p.id, p.workflow_run_id, p.url, p.source_query, p.created_at,
			r.location, a.name AS audience_name
		FROM prospects p
		LEFT JOIN workflow_runs r ON r.id = p.workflow_run_id
		LEFT JOIN audiences a ON a.id = r.audience_id`
)

// ProjectionRepo builds the denormalized read views. Every join is a LEFT
// JOIN so a deleted parent degrades to a null field rather than a lost row.
type ProjectionRepo struct {
	DB     pgxutil.DB
	logger *slog.Logger
}

// NewProjectionRepo creates a new ProjectionRepo.
func NewProjectionRepo(db pgxutil.DB, logger *slog.Logger) *ProjectionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionRepo{DB: db, logger: logger.With("component", "projection_repo")}
}

// ListRuns returns the newest runs first.
func (r *ProjectionRepo) ListRuns(ctx context.Context, limit int) ([]*model.RunView, error) {
	rows, err := r.DB.Query(ctx, runViewSelect+`
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	views, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.RunView])
	if err != nil {
		return nil, fmt.Errorf("collect runs: %w", err)
	}
	return views, nil
}

// ListProspects returns the newest prospects first.
func (r *ProjectionRepo) ListProspects(ctx context.Context, limit int) ([]*model.ProspectView, error) {
	rows, err := r.DB.Query(ctx, prospectViewSelect+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list prospects: %w", err)
	}
	views, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.ProspectView])
	if err != nil {
		return nil, fmt.Errorf("collect prospects: %w", err)
	}
	return views, nil
}

// GetRunView returns one run with its audience name.
func (r *ProjectionRepo) GetRunView(ctx context.Context, id string) (*model.RunView, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("run %q not found", id)
	}
	return getOne[model.RunView](ctx, r.DB, runViewSelect+` WHERE r.id = $1`, "run", id)
}

// GetProspectView returns one prospect with its run location and audience name.
func (r *ProjectionRepo) GetProspectView(ctx context.Context, id string) (*model.ProspectView, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}
	return getOne[model.ProspectView](ctx, r.DB, prospectViewSelect+` WHERE p.id = $1`, "prospect", id)
}

// GetRunContext returns the parent fields a prospect view borrows from its run.
// A missing run yields a context with nil fields.
func (r *ProjectionRepo) GetRunContext(ctx context.Context, runID string) (*model.RunContext, error) {
	rc := &model.RunContext{RunID: runID}
	if !validUUID(runID) {
		return rc, nil
	}
	err := r.DB.QueryRow(ctx, `
		SELECT r.location, a.name
		FROM workflow_runs r
		LEFT JOIN audiences a ON a.id = r.audience_id
		WHERE r.id = $1`, runID).Scan(&rc.Location, &rc.AudienceName)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get run context: %w", err)
	}
	return rc, nil
}

// GetProspectDetail reads a prospect, its analysis and its contacts from one snapshot.
func (r *ProjectionRepo) GetProspectDetail(ctx context.Context, id string) (*model.ProspectDetail, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}

	var detail *model.ProspectDetail
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly},
		Fn: func(tx pgx.Tx) error {
			view, err := getOne[model.ProspectView](ctx, tx, prospectViewSelect+` WHERE p.id = $1`, "prospect", id)
			if err != nil {
				return err
			}
			detail = &model.ProspectDetail{ProspectView: *view, Contacts: []model.Contact{}}

			rows, err := tx.Query(ctx, `SELECT `+analysisColumns+` FROM site_analyses WHERE prospect_id = $1`, id)
			if err != nil {
				return fmt.Errorf("get analysis: %w", err)
			}
			analysis, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.SiteAnalysis])
			switch {
			case errors.Is(err, pgx.ErrNoRows):
			case err != nil:
				return fmt.Errorf("collect analysis: %w", err)
			default:
				detail.Analysis = analysis
			}

			rows, err = tx.Query(ctx, `SELECT `+contactColumns+`
				FROM contacts WHERE prospect_id = $1
				ORDER BY created_at, id`, id)
			if err != nil {
				return fmt.Errorf("list contacts: %w", err)
			}
			contacts, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Contact])
			if err != nil {
				return fmt.Errorf("collect contacts: %w", err)
			}
			if len(contacts) > 0 {
				detail.Contacts = contacts
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOne[T any](ctx context.Context, q querier, sql, noun, id string) (*T, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", noun, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("%s %q not found", noun, id)
	}
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", noun, err)
	}
	return v, nil
}
