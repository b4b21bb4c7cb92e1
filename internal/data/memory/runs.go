package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// CreateRunWithJob inserts a queued run and its pending job under one lock,
// so both exist or neither does.
func (s *Store) CreateRunWithJob(
	_ context.Context,
	params model.CreateRunParams,
) (*model.WorkflowRun, *model.Job, error) {
	payloadFor := func(runID string) (json.RawMessage, error) {
		return json.Marshal(model.RunJobPayload{
			RunID:        runID,
			AudienceID:   params.AudienceID,
			Location:     params.Location,
			MaxProspects: params.MaxProspects,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.audiences[params.AudienceID]; !ok {
		return nil, nil, apperrors.NotFoundf("audience %q not found", params.AudienceID)
	}

	now := s.clock.Now()
	run := model.WorkflowRun{
		ID:           newID(),
		AudienceID:   ptr(params.AudienceID),
		Location:     params.Location,
		MaxProspects: params.MaxProspects,
		Status:       model.RunStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	payload, err := payloadFor(run.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job payload: %w", err)
	}
	job := model.Job{
		ID:          newID(),
		Queue:       params.Queue,
		RunID:       run.ID,
		Payload:     payload,
		Status:      model.JobStatusPending,
		MaxAttempts: max(params.MaxAttempts, 1),
		VisibleAt:   now,
		EnqueuedAt:  now,
		UpdatedAt:   now,
	}

	s.runs[run.ID] = &row[model.WorkflowRun]{seq: s.nextSeq(), v: run}
	s.jobs[job.ID] = &row[model.Job]{seq: s.nextSeq(), v: job}
	s.signal(job.Queue)
	return ptr(run), ptr(job), nil
}

// RunRepo is the in-memory core.RunRepository.
type RunRepo struct{ s *Store }

// Runs returns the run repository view of the store.
func (s *Store) Runs() *RunRepo { return &RunRepo{s: s} }

// GetByID retrieves a run by id.
func (r *RunRepo) GetByID(_ context.Context, id string) (*model.WorkflowRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, apperrors.NotFoundf("run %q not found", id)
	}
	return ptr(run.v), nil
}

// Transition applies a worker status report with the same guard as the SQL update.
func (r *RunRepo) Transition(_ context.Context, req model.TransitionRunRequest) (*model.TransitionResult, error) {
	if !req.Status.Valid() {
		return nil, apperrors.ValidationField("status", "status must be one of queued, running, completed, failed")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[req.RunID]
	if !ok {
		return nil, apperrors.NotFoundf("run %q not found", req.RunID)
	}
	if !run.v.Status.CanTransitionTo(req.Status) {
		if run.v.Status == req.Status {
			return &model.TransitionResult{Run: ptr(run.v), Changed: false}, nil
		}
		return nil, apperrors.Conflictf("run %s cannot move from %s to %s", run.v.ID, run.v.Status, req.Status)
	}

	now := s.clock.Now()
	run.v.Status = req.Status
	switch {
	case req.Status == model.RunStatusRunning && run.v.StartedAt == nil:
		run.v.StartedAt = ptr(now)
	case req.Status.Terminal() && run.v.FinishedAt == nil:
		run.v.FinishedAt = ptr(now)
	}
	if req.Error != nil {
		run.v.Error = req.Error
	}
	run.v.UpdatedAt = now
	return &model.TransitionResult{Run: ptr(run.v), Changed: true}, nil
}

// ProspectRepo is the in-memory core.ProspectRepository.
type ProspectRepo struct{ s *Store }

// Prospects returns the prospect repository view of the store.
func (s *Store) Prospects() *ProspectRepo { return &ProspectRepo{s: s} }

// Create inserts a prospect only while its run is running.
func (r *ProspectRepo) Create(_ context.Context, req *model.CreateProspectRequest) (*model.Prospect, error) {
	if req == nil {
		return nil, apperrors.Validation("create prospect request is required")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[req.RunID]
	if !ok {
		return nil, apperrors.NotFoundf("run %q not found", req.RunID)
	}
	if run.v.Status != model.RunStatusRunning {
		return nil, apperrors.Conflictf("run %s is %s; prospects can only be added while it is running",
			run.v.ID, run.v.Status)
	}
	p := model.Prospect{
		ID:          newID(),
		RunID:       req.RunID,
		URL:         req.URL,
		SourceQuery: req.SourceQuery,
		CreatedAt:   s.clock.Now(),
	}
	s.prospects[p.ID] = &row[model.Prospect]{seq: s.nextSeq(), v: p}
	return &p, nil
}

// GetByID retrieves a prospect by id.
func (r *ProspectRepo) GetByID(_ context.Context, id string) (*model.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return nil, apperrors.NotFoundf("prospect %q not found", id)
	}
	return ptr(p.v), nil
}

// CreateAnalysis records the one analysis a prospect gets.
func (r *ProspectRepo) CreateAnalysis(
	_ context.Context,
	req *model.CreateSiteAnalysisRequest,
) (*model.SiteAnalysis, error) {
	if req == nil {
		return nil, apperrors.Validation("create analysis request is required")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prospects[req.ProspectID]; !ok {
		return nil, apperrors.NotFoundf("prospect %q not found", req.ProspectID)
	}
	if _, ok := s.analyses[req.ProspectID]; ok {
		return nil, apperrors.Conflictf("prospect %s already has an analysis", req.ProspectID)
	}
	techIssues := json.RawMessage("null")
	if len(req.TechIssues) > 0 {
		techIssues = slices.Clone(req.TechIssues)
	}
	a := model.SiteAnalysis{
		ID:         newID(),
		ProspectID: req.ProspectID,
		Scores:     maps.Clone(req.Scores),
		TechIssues: techIssues,
		AnalyzedAt: s.clock.Now(),
	}
	s.analyses[req.ProspectID] = a
	return &a, nil
}

// AddContacts appends contacts, skipping any the prospect already has.
func (r *ProspectRepo) AddContacts(_ context.Context, req *model.AddContactsRequest) ([]*model.Contact, error) {
	if req == nil || len(req.Contacts) == 0 {
		return nil, apperrors.ValidationField("contacts", "at least one contact is required")
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prospects[req.ProspectID]; !ok {
		return nil, apperrors.NotFoundf("prospect %q not found", req.ProspectID)
	}
	type key struct {
		t model.ContactType
		v string
	}
	existing := make(map[key]bool)
	for _, c := range s.contacts[req.ProspectID] {
		existing[key{c.Type, c.Value}] = true
	}

	now := s.clock.Now()
	added := make([]*model.Contact, 0, len(req.Contacts))
	for _, in := range req.Contacts {
		k := key{in.Type, in.Value}
		if existing[k] {
			continue
		}
		existing[k] = true
		c := model.Contact{ID: newID(), ProspectID: req.ProspectID, Type: in.Type, Value: in.Value, CreatedAt: now}
		s.contacts[req.ProspectID] = append(s.contacts[req.ProspectID], c)
		added = append(added, &c)
	}
	return added, nil
}
