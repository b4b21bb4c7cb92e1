package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
)

const (
	defaultEnrichTTL = 5 * time.Minute
	runContextPrefix = "run_context:"
)

// ProjectionServiceOptions groups dependencies for ProjectionService.
type ProjectionServiceOptions struct {
	Repo     core.ProjectionRepository // Required
	Cache    core.CacheRepository      // Optional: run context cache for enrichment
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// ProjectionService serves the denormalized read views and enriches live
// change events with the same joined fields.
type ProjectionService struct {
	repo     core.ProjectionRepository
	cache    core.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewProjectionService constructs a new ProjectionService.
func NewProjectionService(opts ProjectionServiceOptions) (*ProjectionService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ProjectionRepository is required")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultEnrichTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionService{
		repo:     opts.Repo,
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   logger.With("component", "projection_service"),
	}, nil
}

// ListRuns returns the newest runs with their audience names.
func (s *ProjectionService) ListRuns(ctx context.Context, limit int) ([]*model.RunView, error) {
	return s.repo.ListRuns(ctx, limit)
}

// ListProspects returns the newest prospects with their run location and audience name.
func (s *ProjectionService) ListProspects(ctx context.Context, limit int) ([]*model.ProspectView, error) {
	return s.repo.ListProspects(ctx, limit)
}

// GetRun returns one run view.
func (s *ProjectionService) GetRun(ctx context.Context, id string) (*model.RunView, error) {
	return s.repo.GetRunView(ctx, id)
}

// GetProspect returns a prospect with its analysis and contacts.
func (s *ProjectionService) GetProspect(ctx context.Context, id string) (*model.ProspectDetail, error) {
	return s.repo.GetProspectDetail(ctx, id)
}

// Enrich builds the view for an event's row image using the run context,
// so live events carry the same joined fields as the snapshot. A missing
// parent yields nil joined fields.
func (s *ProjectionService) Enrich(ctx context.Context, evt model.ChangeEvent) (json.RawMessage, error) {
	switch evt.Table {
	case model.TableWorkflowRuns:
		run, err := evt.DecodeRun()
		if err != nil {
			return nil, err
		}
		var name *string
		if run.AudienceID != nil {
			rc, err := s.runContext(ctx, run.ID)
			if err != nil {
				return nil, err
			}
			if rc != nil {
				name = rc.AudienceName
			}
		}
		return json.Marshal(model.NewRunView(run, name))
	case model.TableProspects:
		p, err := evt.DecodeProspect()
		if err != nil {
			return nil, err
		}
		rc, err := s.runContext(ctx, p.RunID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(model.NewProspectView(p, rc))
	default:
		return nil, fmt.Errorf("cannot enrich table %q", evt.Table)
	}
}

// runContext reads through the cache. Cache failures fall back to the store.
func (s *ProjectionService) runContext(ctx context.Context, runID string) (*model.RunContext, error) {
	key := runContextPrefix + runID
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.DebugContext(ctx, "run context cache read failed", "run_id", runID, "error", err)
		case raw != nil:
			var rc model.RunContext
			if err := json.Unmarshal(raw, &rc); err == nil {
				return &rc, nil
			}
		}
	}

	rc, err := s.repo.GetRunContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run context: %w", err)
	}
	if rc == nil || s.cache == nil {
		return rc, nil
	}
	if raw, err := json.Marshal(rc); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.logger.DebugContext(ctx, "run context cache write failed", "run_id", runID, "error", err)
		}
	}
	return rc, nil
}
