package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
	"github.com/target/prospector/internal/observability/metrics"
)

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Runs      core.RunRepository      // Required
	Prospects core.ProspectRepository // Required
	Publisher core.ChangePublisher    // Optional: change feed
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// WorkerService applies what the external worker reports: run status
// changes and the prospects, analyses and contacts it discovers. Every
// operation is safe to repeat, so at-least-once delivery of a job converges.
type WorkerService struct {
	runs      core.RunRepository
	prospects core.ProspectRepository
	publisher core.ChangePublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Runs == nil {
		return nil, errors.New("RunRepository is required")
	}
	if opts.Prospects == nil {
		return nil, errors.New("ProspectRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerService{
		runs:      opts.Runs,
		prospects: opts.Prospects,
		publisher: opts.Publisher,
		logger:    logger.With("component", "worker_service"),
		metrics:   opts.Metrics,
	}, nil
}

// TransitionRun moves a run forward. Repeating the current status returns
// Changed=false and publishes nothing.
func (s *WorkerService) TransitionRun(ctx context.Context, req model.TransitionRunRequest) (*model.TransitionResult, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("invalid status %q", req.Status))
	}
	if req.Error != nil {
		msg := strings.TrimSpace(*req.Error)
		req.Error = &msg
	}

	res, err := s.runs.Transition(ctx, req)
	if err != nil {
		switch {
		case apperrors.IsConflict(err):
			s.metrics.RunTransition(string(req.Status), metrics.ResultConflict)
		default:
			s.metrics.RunTransition(string(req.Status), metrics.ResultError)
		}
		return nil, err
	}

	if !res.Changed {
		s.metrics.RunTransition(string(req.Status), metrics.ResultNoop)
		s.logger.DebugContext(ctx, "run already in requested status", "run_id", req.RunID, "status", req.Status)
		return res, nil
	}

	s.metrics.RunTransition(string(req.Status), metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "run status changed", "run_id", req.RunID, "status", res.Run.Status)
	publishChange(ctx, s.publisher, s.logger, model.TableWorkflowRuns, model.OperationUpdate, res.Run)
	return res, nil
}

// AddProspect records a discovered site. The run must be running.
func (s *WorkerService) AddProspect(ctx context.Context, req *model.CreateProspectRequest) (*model.Prospect, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.SourceQuery != nil {
		q := strings.TrimSpace(*req.SourceQuery)
		req.SourceQuery = &q
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	p, err := s.prospects.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "prospect recorded", "run_id", p.RunID, "prospect_id", p.ID)
	publishChange(ctx, s.publisher, s.logger, model.TableProspects, model.OperationInsert, p)
	return p, nil
}

// RecordAnalysis stores the one analysis a prospect may have.
func (s *WorkerService) RecordAnalysis(ctx context.Context, req *model.CreateSiteAnalysisRequest) (*model.SiteAnalysis, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	a, err := s.prospects.CreateAnalysis(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "site analysis recorded", "prospect_id", a.ProspectID)
	return a, nil
}

// AddContacts appends contacts, skipping ones the prospect already has.
func (s *WorkerService) AddContacts(ctx context.Context, req *model.AddContactsRequest) ([]*model.Contact, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	for i := range req.Contacts {
		req.Contacts[i].Value = strings.TrimSpace(req.Contacts[i].Value)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	added, err := s.prospects.AddContacts(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "contacts recorded",
		"prospect_id", req.ProspectID,
		"submitted", len(req.Contacts),
		"inserted", len(added),
	)
	return added, nil
}
