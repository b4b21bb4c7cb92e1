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

// DispatcherConfig bounds what an operator may request.
type DispatcherConfig struct {
	MaxProspects     int
	DefaultProspects int
	Queue            string
	MaxAttempts      int
}

// DispatcherServiceOptions groups dependencies for DispatcherService.
type DispatcherServiceOptions struct {
	Repo      core.DispatchRepository // Required: run + job outbox
	Publisher core.ChangePublisher    // Optional: change feed
	Config    DispatcherConfig
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// DispatcherService starts workflow runs. Each accepted request creates one
// queued run and exactly one job for it, atomically.
type DispatcherService struct {
	repo      core.DispatchRepository
	publisher core.ChangePublisher
	config    DispatcherConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewDispatcherService constructs a new DispatcherService.
func NewDispatcherService(opts DispatcherServiceOptions) (*DispatcherService, error) {
	if opts.Repo == nil {
		return nil, errors.New("DispatchRepository is required")
	}
	cfg := opts.Config
	if cfg.MaxProspects < 1 {
		cfg.MaxProspects = 25
	}
	if cfg.DefaultProspects < 1 || cfg.DefaultProspects > cfg.MaxProspects {
		cfg.DefaultProspects = min(5, cfg.MaxProspects)
	}
	if cfg.Queue == "" {
		cfg.Queue = "worker_jobs"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatcher")

	return &DispatcherService{
		repo:      opts.Repo,
		publisher: opts.Publisher,
		config:    cfg,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// ClampProspects resolves the requested prospect budget: zero (absent) uses
// the default, anything else is clamped into [1, MaxProspects].
func (s *DispatcherService) ClampProspects(requested int) int {
	if requested == 0 {
		return s.config.DefaultProspects
	}
	return max(1, min(requested, s.config.MaxProspects))
}

// StartRun validates req, then creates the run and its job in one
// transaction. Validation failures write nothing. Any store failure after
// validation is a dispatch error the caller may retry; a retry creates a new
// run.
func (s *DispatcherService) StartRun(ctx context.Context, req model.StartRunRequest) (*model.RunHandle, error) {
	req.AudienceID = strings.TrimSpace(req.AudienceID)
	req.Location = strings.TrimSpace(req.Location)
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	params := model.CreateRunParams{
		AudienceID:   req.AudienceID,
		Location:     req.Location,
		MaxProspects: s.ClampProspects(req.MaxProspects),
		Queue:        s.config.Queue,
		MaxAttempts:  s.config.MaxAttempts,
	}

	run, job, err := s.repo.CreateRunWithJob(ctx, params)
	if err != nil {
		err = s.classify(err)
		s.metrics.RunDispatched(err)
		s.logger.WarnContext(ctx, "run dispatch failed",
			"audience_id", req.AudienceID,
			"code", apperrors.GetCode(err),
			"error", err,
		)
		return nil, err
	}
	s.metrics.RunDispatched(nil)

	s.logger.InfoContext(ctx, "run dispatched",
		"run_id", run.ID,
		"job_id", job.ID,
		"audience_id", req.AudienceID,
		"max_prospects", run.MaxProspects,
	)

	publishChange(ctx, s.publisher, s.logger, model.TableWorkflowRuns, model.OperationInsert, run)
	return &model.RunHandle{ID: run.ID, Status: run.Status}, nil
}

func (s *DispatcherService) classify(err error) error {
	switch {
	case apperrors.IsNotFound(err):
		return apperrors.ValidationField("audience_id", "audience does not exist")
	case apperrors.IsValidation(err):
		return err
	default:
		return apperrors.Dispatch(fmt.Errorf("create run with job: %w", err))
	}
}
