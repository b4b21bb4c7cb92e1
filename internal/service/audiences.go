package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// AudienceServiceOptions groups dependencies for AudienceService.
type AudienceServiceOptions struct {
	Repo   core.AudienceRepository // Required
	Logger *slog.Logger
}

// AudienceService is the administrative surface for audiences.
type AudienceService struct {
	repo   core.AudienceRepository
	logger *slog.Logger
}

// NewAudienceService constructs a new AudienceService.
func NewAudienceService(opts AudienceServiceOptions) (*AudienceService, error) {
	if opts.Repo == nil {
		return nil, errors.New("AudienceRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AudienceService{repo: opts.Repo, logger: logger.With("component", "audience_service")}, nil
}

// Create validates and stores a new audience. Names are unique.
func (s *AudienceService) Create(ctx context.Context, req *model.CreateAudienceRequest) (*model.Audience, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	req.Normalize()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	a, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "audience created", "id", a.ID, "name", a.Name)
	return a, nil
}

// Get returns one audience.
func (s *AudienceService) Get(ctx context.Context, id string) (*model.Audience, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName returns the audience with the given name.
func (s *AudienceService) GetByName(ctx context.Context, name string) (*model.Audience, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns audiences ordered by name.
func (s *AudienceService) List(ctx context.Context, limit, offset int) ([]*model.Audience, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update applies an administrative edit.
func (s *AudienceService) Update(ctx context.Context, id string, req model.UpdateAudienceRequest) (*model.Audience, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if !req.HasUpdates() {
		return nil, apperrors.Validation("at least one field must be updated")
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	a, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "audience updated", "id", a.ID)
	return a, nil
}

// Delete removes an audience under an explicit policy. There is no default
// policy; policy must be "cascade" or "detach".
func (s *AudienceService) Delete(ctx context.Context, id, policy string) (*model.AudienceDeleteResult, error) {
	p, err := model.ParseAudienceDeletePolicy(policy)
	if err != nil {
		return nil, apperrors.ValidationField("policy", err.Error())
	}
	res, err := s.repo.Delete(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !res.Deleted {
		return nil, apperrors.NotFoundf("audience %q not found", id)
	}
	s.logger.WarnContext(ctx, "audience deleted",
		"id", id,
		"policy", p,
		"runs_affected", res.RunsAffected,
	)
	return res, nil
}
