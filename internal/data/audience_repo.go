package data

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

const audienceColumns = `id, name, description, config, created_at, updated_at`

// AudienceRepo provides database operations for audiences.
type AudienceRepo struct {
	DB           pgxutil.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// AudienceRepoOptions configures NewAudienceRepo.
type AudienceRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewAudienceRepo creates a new AudienceRepo.
func NewAudienceRepo(db pgxutil.DB, opts AudienceRepoOptions) *AudienceRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AudienceRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       logger.With("component", "audience_repo"),
	}
}

func collectAudience(rows pgx.Rows) (*model.Audience, error) {
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Audience])
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return a, nil
}

// Create inserts a new audience.
func (r *AudienceRepo) Create(ctx context.Context, req *model.CreateAudienceRequest) (*model.Audience, error) {
	if req == nil {
		return nil, apperrors.Validation("create audience request is required")
	}
	req.Normalize()

	now := r.timeProvider.Now()
	rows, err := r.DB.Query(ctx, `
		INSERT INTO audiences (name, description, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+audienceColumns,
		req.Name, req.Description, []byte(req.Config), now)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return collectAudience(rows)
}

// GetByID retrieves an audience by id.
func (r *AudienceRepo) GetByID(ctx context.Context, id string) (*model.Audience, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("audience %q not found", id)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+audienceColumns+` FROM audiences WHERE id = $1`, id)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return collectAudience(rows)
}

// GetByName retrieves an audience by its unique name.
func (r *AudienceRepo) GetByName(ctx context.Context, name string) (*model.Audience, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+audienceColumns+` FROM audiences WHERE name = $1`,
		strings.TrimSpace(name))
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return collectAudience(rows)
}

// List returns audiences ordered by name.
func (r *AudienceRepo) List(ctx context.Context, limit, offset int) ([]*model.Audience, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+audienceColumns+`
		FROM audiences
		ORDER BY name ASC
		LIMIT $1 OFFSET $2`, clampLimit(limit), offset)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Audience])
	if err != nil {
		return nil, fmt.Errorf("collect audiences: %w", err)
	}
	return out, nil
}

// Update applies an administrative edit.
func (r *AudienceRepo) Update(ctx context.Context, id string, req model.UpdateAudienceRequest) (*model.Audience, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("audience %q not found", id)
	}
	if !req.HasUpdates() {
		return r.GetByID(ctx, id)
	}

	var name *string
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		name = &trimmed
	}
	var cfg []byte
	if len(req.Config) > 0 {
		cfg = req.Config
	}

	rows, err := r.DB.Query(ctx, `
		UPDATE audiences SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			config = COALESCE($4::jsonb, config),
			updated_at = $5
		WHERE id = $1
		RETURNING `+audienceColumns,
		id, name, req.Description, cfg, r.timeProvider.Now())
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return collectAudience(rows)
}

// Delete removes an audience according to policy. Cascade relies on the
// foreign key's ON DELETE CASCADE; detach first clears the reference on
// every dependent run so that history survives.
func (r *AudienceRepo) Delete(
	ctx context.Context,
	id string,
	policy model.AudienceDeletePolicy,
) (*model.AudienceDeleteResult, error) {
	if !policy.Valid() {
		return nil, apperrors.ValidationField("policy", "delete policy must be cascade or detach")
	}
	res := &model.AudienceDeleteResult{Policy: policy}
	if !validUUID(id) {
		return res, nil
	}

	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{Opts: pgxutil.ReadCommitted, Fn: func(tx pgx.Tx) error {
		var runs int64
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM workflow_runs WHERE audience_id = $1`, id).Scan(&runs); err != nil {
			return fmt.Errorf("count dependent runs: %w", err)
		}

		if policy == model.AudienceDeleteDetach && runs > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE workflow_runs SET audience_id = NULL, updated_at = $2
				WHERE audience_id = $1`, id, r.timeProvider.Now()); err != nil {
				return fmt.Errorf("detach runs: %w", err)
			}
		}

		tag, err := tx.Exec(ctx, `DELETE FROM audiences WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete audience: %w", err)
		}
		res.Deleted = tag.RowsAffected() > 0
		if res.Deleted {
			res.RunsAffected = runs
		}
		return nil
	}})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	if res.Deleted {
		r.logger.InfoContext(ctx, "audience deleted",
			"audience_id", id, "policy", policy, "runs_affected", res.RunsAffected)
	}
	return res, nil
}
