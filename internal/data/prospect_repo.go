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

const (
	prospectColumns = `id, workflow_run_id, url, source_query, created_at`
	analysisColumns = `id, prospect_id, scores, COALESCE(tech_issues, 'null'::jsonb) AS tech_issues, analyzed_at`
	contactColumns  = `id, prospect_id, type, value, created_at`
)

// ProspectRepo stores what the worker discovers during a run.
type ProspectRepo struct {
	DB           pgxutil.DB
	runs         *RunRepo
	timeProvider TimeProvider
	logger       *slog.Logger
}

// ProspectRepoOptions configures NewProspectRepo.
type ProspectRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewProspectRepo creates a new ProspectRepo.
func NewProspectRepo(db pgxutil.DB, opts ProspectRepoOptions) *ProspectRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := timeProviderOrDefault(opts.TimeProvider)
	return &ProspectRepo{
		DB:           db,
		runs:         NewRunRepo(db, RunRepoOptions{TimeProvider: tp, Logger: logger}),
		timeProvider: tp,
		logger:       logger.With("component", "prospect_repo"),
	}
}

// Create inserts a prospect. The insert selects from the owning run under a
// share lock so it only succeeds while the run is running and cannot race a
// concurrent completion.
func (r *ProspectRepo) Create(ctx context.Context, req *model.CreateProspectRequest) (*model.Prospect, error) {
	if req == nil {
		return nil, apperrors.Validation("create prospect request is required")
	}
	if !validUUID(req.RunID) {
		return nil, apperrors.NotFoundf("run %q not found", req.RunID)
	}

	rows, err := r.DB.Query(ctx, `
		INSERT INTO prospects (workflow_run_id, url, source_query, created_at)
		SELECT r.id, $2, $3, $4
		FROM (SELECT id FROM workflow_runs WHERE id = $1 AND status = 'running' FOR SHARE) r
		RETURNING `+prospectColumns,
		req.RunID, req.URL, req.SourceQuery, r.timeProvider.Now())
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Prospect])
	if err == nil {
		return p, nil
	}
	if mapped := apperrors.MapDBError(err); !apperrors.IsNotFound(mapped) {
		return nil, fmt.Errorf("insert prospect: %w", err)
	}

	run, getErr := r.runs.GetByID(ctx, req.RunID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.Conflictf("run %s is %s; prospects can only be added while it is running", run.ID, run.Status)
}

// GetByID retrieves a prospect by id.
func (r *ProspectRepo) GetByID(ctx context.Context, id string) (*model.Prospect, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Prospect])
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return p, nil
}

// CreateAnalysis records the one analysis a prospect gets.
func (r *ProspectRepo) CreateAnalysis(
	ctx context.Context,
	req *model.CreateSiteAnalysisRequest,
) (*model.SiteAnalysis, error) {
	if req == nil {
		return nil, apperrors.Validation("create analysis request is required")
	}
	if !validUUID(req.ProspectID) {
		return nil, apperrors.NotFoundf("prospect %q not found", req.ProspectID)
	}

	var techIssues []byte
	if len(req.TechIssues) > 0 {
		techIssues = req.TechIssues
	}

	rows, err := r.DB.Query(ctx, `
		INSERT INTO site_analyses (prospect_id, scores, tech_issues, analyzed_at)
		VALUES ($1, $2, $3::jsonb, $4)
		RETURNING `+analysisColumns,
		req.ProspectID, req.Scores, techIssues, r.timeProvider.Now())
	if err != nil {
		return nil, mapAnalysisError(req.ProspectID, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.SiteAnalysis])
	if err != nil {
		return nil, mapAnalysisError(req.ProspectID, err)
	}
	return a, nil
}

func mapAnalysisError(prospectID string, err error) error {
	mapped := apperrors.MapDBError(err)
	switch {
	case apperrors.IsForeignKey(mapped):
		return apperrors.NotFoundf("prospect %q not found", prospectID)
	case apperrors.IsConflict(mapped):
		return apperrors.Conflictf("prospect %s already has an analysis", prospectID)
	default:
		return mapped
	}
}

// AddContacts appends contacts, skipping any the prospect already has.
func (r *ProspectRepo) AddContacts(ctx context.Context, req *model.AddContactsRequest) ([]*model.Contact, error) {
	if req == nil || len(req.Contacts) == 0 {
		return nil, apperrors.ValidationField("contacts", "at least one contact is required")
	}
	if !validUUID(req.ProspectID) {
		return nil, apperrors.NotFoundf("prospect %q not found", req.ProspectID)
	}

	types := make([]string, len(req.Contacts))
	values := make([]string, len(req.Contacts))
	for i, c := range req.Contacts {
		types[i] = string(c.Type)
		values[i] = c.Value
	}

	rows, err := r.DB.Query(ctx, `
		INSERT INTO contacts (prospect_id, type, value, created_at)
		SELECT $1, c.type, c.value, $4
		FROM unnest($2::text[], $3::text[]) AS c(type, value)
		ON CONFLICT (prospect_id, type, value) DO NOTHING
		RETURNING `+contactColumns,
		req.ProspectID, types, values, r.timeProvider.Now())
	if err != nil {
		return nil, mapContactError(req.ProspectID, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Contact])
	if err != nil {
		return nil, mapContactError(req.ProspectID, err)
	}
	return out, nil
}

func mapContactError(prospectID string, err error) error {
	mapped := apperrors.MapDBError(err)
	if apperrors.IsForeignKey(mapped) {
		return apperrors.NotFoundf("prospect %q not found", prospectID)
	}
	return mapped
}
