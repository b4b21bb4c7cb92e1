package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

var errNameTaken = &apperrors.AppError{
	Code:    apperrors.ErrCodeConflict,
	Message: "this value already exists",
	Field:   "name",
}

// AudienceRepo is the in-memory core.AudienceRepository.
type AudienceRepo struct{ s *Store }

// Audiences returns the audience repository view of the store.
func (s *Store) Audiences() *AudienceRepo { return &AudienceRepo{s: s} }

func (s *Store) audienceByName(name string) *row[model.Audience] {
	for _, r := range s.audiences {
		if r.v.Name == name {
			return r
		}
	}
	return nil
}

// Create inserts a new audience. Names are unique.
func (r *AudienceRepo) Create(_ context.Context, req *model.CreateAudienceRequest) (*model.Audience, error) {
	if req == nil {
		return nil, apperrors.Validation("create audience request is required")
	}
	req.Normalize()
	if req.Name == "" {
		return nil, apperrors.ValidationField("name", "name is required")
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audienceByName(req.Name) != nil {
		return nil, errNameTaken
	}
	now := s.clock.Now()
	a := model.Audience{
		ID:          newID(),
		Name:        req.Name,
		Description: req.Description,
		Config:      slices.Clone(req.Config),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.audiences[a.ID] = &row[model.Audience]{seq: s.nextSeq(), v: a}
	return &a, nil
}

// GetByID retrieves an audience by id.
func (r *AudienceRepo) GetByID(_ context.Context, id string) (*model.Audience, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.audiences[id]
	if !ok {
		return nil, apperrors.NotFoundf("audience %q not found", id)
	}
	return ptr(a.v), nil
}

// GetByName retrieves an audience by its unique name.
func (r *AudienceRepo) GetByName(_ context.Context, name string) (*model.Audience, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.audienceByName(strings.TrimSpace(name))
	if a == nil {
		return nil, apperrors.NotFoundf("audience %q not found", name)
	}
	return ptr(a.v), nil
}

// List returns audiences ordered by name.
func (r *AudienceRepo) List(_ context.Context, limit, offset int) ([]*model.Audience, error) {
	r.s.mu.Lock()
	out := make([]*model.Audience, 0, len(r.s.audiences))
	for _, a := range r.s.audiences {
		out = append(out, ptr(a.v))
	}
	r.s.mu.Unlock()

	slices.SortFunc(out, func(a, b *model.Audience) int { return strings.Compare(a.Name, b.Name) })
	offset = max(offset, 0)
	if offset >= len(out) {
		return []*model.Audience{}, nil
	}
	out = out[offset:]
	return out[:min(len(out), clampLimit(limit))], nil
}

// Update applies an administrative edit.
func (r *AudienceRepo) Update(_ context.Context, id string, req model.UpdateAudienceRequest) (*model.Audience, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.audiences[id]
	if !ok {
		return nil, apperrors.NotFoundf("audience %q not found", id)
	}
	if !req.HasUpdates() {
		return ptr(a.v), nil
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if other := s.audienceByName(name); other != nil && other.v.ID != id {
			return nil, errNameTaken
		}
		a.v.Name = name
	}
	if req.Description != nil {
		a.v.Description = req.Description
	}
	if len(req.Config) > 0 {
		a.v.Config = slices.Clone(req.Config)
	}
	a.v.UpdatedAt = s.clock.Now()
	return ptr(a.v), nil
}

// Delete removes an audience. Cascade removes its runs and everything they
// own; detach keeps the runs with a cleared reference.
func (r *AudienceRepo) Delete(
	_ context.Context,
	id string,
	policy model.AudienceDeletePolicy,
) (*model.AudienceDeleteResult, error) {
	if !policy.Valid() {
		return nil, apperrors.ValidationField("policy", "delete policy must be cascade or detach")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &model.AudienceDeleteResult{Policy: policy}
	if _, ok := s.audiences[id]; !ok {
		return res, nil
	}
	now := s.clock.Now()
	for runID, run := range s.runs {
		if run.v.AudienceID == nil || *run.v.AudienceID != id {
			continue
		}
		res.RunsAffected++
		if policy == model.AudienceDeleteDetach {
			run.v.AudienceID = nil
			run.v.UpdatedAt = now
			continue
		}
		s.deleteRunLocked(runID)
	}
	delete(s.audiences, id)
	res.Deleted = true
	return res, nil
}

// deleteRunLocked removes a run and everything it owns.
func (s *Store) deleteRunLocked(runID string) {
	delete(s.runs, runID)
	for jobID, j := range s.jobs {
		if j.v.RunID == runID {
			delete(s.jobs, jobID)
		}
	}
	for pid, p := range s.prospects {
		if p.v.RunID != runID {
			continue
		}
		delete(s.prospects, pid)
		delete(s.analyses, pid)
		delete(s.contacts, pid)
	}
}
