package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// Projection is the in-memory core.ProjectionRepository. Joins mirror the
// SQL LEFT JOINs: a missing parent leaves the joined field nil.
type Projection struct{ s *Store }

// Projection returns the read projection view of the store.
func (s *Store) Projection() *Projection { return &Projection{s: s} }

func (s *Store) audienceNameLocked(id *string) *string {
	if id == nil {
		return nil
	}
	if a, ok := s.audiences[*id]; ok {
		return ptr(a.v.Name)
	}
	return nil
}

func (s *Store) runContextLocked(runID string) *model.RunContext {
	rc := &model.RunContext{RunID: runID}
	if run, ok := s.runs[runID]; ok {
		rc.Location = ptr(run.v.Location)
		rc.AudienceName = s.audienceNameLocked(run.v.AudienceID)
	}
	return rc
}

// ListRuns returns the newest runs first.
func (p *Projection) ListRuns(_ context.Context, limit int) ([]*model.RunView, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*row[model.WorkflowRun], 0, len(s.runs))
	for _, r := range s.runs {
		rows = append(rows, r)
	}
	newestFirst(rows, func(r model.WorkflowRun) time.Time { return r.CreatedAt })
	rows = rows[:min(len(rows), clampLimit(limit))]

	out := make([]*model.RunView, len(rows))
	for i, r := range rows {
		out[i] = ptr(model.NewRunView(r.v, s.audienceNameLocked(r.v.AudienceID)))
	}
	return out, nil
}

// ListProspects returns the newest prospects first.
func (p *Projection) ListProspects(_ context.Context, limit int) ([]*model.ProspectView, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*row[model.Prospect], 0, len(s.prospects))
	for _, r := range s.prospects {
		rows = append(rows, r)
	}
	newestFirst(rows, func(p model.Prospect) time.Time { return p.CreatedAt })
	rows = rows[:min(len(rows), clampLimit(limit))]

	out := make([]*model.ProspectView, len(rows))
	for i, r := range rows {
		out[i] = ptr(model.NewProspectView(r.v, s.runContextLocked(r.v.RunID)))
	}
	return out, nil
}

// GetRunView returns one run with its audience name.
func (p *Projection) GetRunView(_ context.Context, id string) (*model.RunView, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, apperrors.NotFoundf("run %q not found", id)
	}
	return ptr(model.NewRunView(r.v, s.audienceNameLocked(r.v.AudienceID))), nil
}

// GetProspectView returns one prospect with its run context.
func (p *Projection) GetProspectView(_ context.Context, id string) (*model.ProspectView, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.prospects[id]
	if !ok {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}
	return ptr(model.NewProspectView(r.v, s.runContextLocked(r.v.RunID))), nil
}

// GetRunContext returns the parent fields a prospect view borrows from its run.
func (p *Projection) GetRunContext(_ context.Context, runID string) (*model.RunContext, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.runContextLocked(runID), nil
}

// GetProspectDetail returns a prospect with its analysis and contacts.
func (p *Projection) GetProspectDetail(_ context.Context, id string) (*model.ProspectDetail, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.prospects[id]
	if !ok {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}
	d := &model.ProspectDetail{
		ProspectView: model.NewProspectView(r.v, s.runContextLocked(r.v.RunID)),
		Contacts:     slices.Clone(s.contacts[id]),
	}
	if d.Contacts == nil {
		d.Contacts = []model.Contact{}
	}
	slices.SortStableFunc(d.Contacts, func(a, b model.Contact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	if a, ok := s.analyses[id]; ok {
		d.Analysis = ptr(a)
	}
	return d, nil
}
