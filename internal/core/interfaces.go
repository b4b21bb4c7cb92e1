// Package core defines the ports between the prospector services and their
// store, queue and change feed adapters.
package core

import (
	"context"
	"time"

	"github.com/target/prospector/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces; internal/data provides the
// Postgres adapters and internal/data/memory the in-process ones.

// AudienceRepository defines the interface for audience data operations.
type AudienceRepository interface {
	Create(ctx context.Context, req *model.CreateAudienceRequest) (*model.Audience, error)
	GetByID(ctx context.Context, id string) (*model.Audience, error)
	GetByName(ctx context.Context, name string) (*model.Audience, error)
	List(ctx context.Context, limit, offset int) ([]*model.Audience, error)
	Update(ctx context.Context, id string, req model.UpdateAudienceRequest) (*model.Audience, error)
	// Delete removes an audience. The policy decides whether dependent runs are deleted or detached.
	Delete(ctx context.Context, id string, policy model.AudienceDeletePolicy) (*model.AudienceDeleteResult, error)
}

// DispatchRepository creates a run and its job in one transaction.
type DispatchRepository interface {
	// CreateRunWithJob returns NotFound if the audience does not exist. Any other
	// error means neither the run nor the job was written.
	CreateRunWithJob(ctx context.Context, params model.CreateRunParams) (*model.WorkflowRun, *model.Job, error)
}

// RunRepository defines the worker-facing run operations.
type RunRepository interface {
	GetByID(ctx context.Context, id string) (*model.WorkflowRun, error)
	// Transition applies a status change if it is a forward step. Repeating the
	// current status is a no-op with Changed=false; anything else out of a
	// terminal status is a Conflict.
	Transition(ctx context.Context, req model.TransitionRunRequest) (*model.TransitionResult, error)
}

// ProspectRepository defines worker inserts for prospects and what hangs off them.
type ProspectRepository interface {
	// Create inserts a prospect only while its run is running.
	Create(ctx context.Context, req *model.CreateProspectRequest) (*model.Prospect, error)
	GetByID(ctx context.Context, id string) (*model.Prospect, error)
	CreateAnalysis(ctx context.Context, req *model.CreateSiteAnalysisRequest) (*model.SiteAnalysis, error)
	// AddContacts returns only newly inserted contacts; existing ones are skipped.
	AddContacts(ctx context.Context, req *model.AddContactsRequest) ([]*model.Contact, error)
}

// JobQueue defines the at-least-once queue consumed by external workers.
type JobQueue interface {
	Reserve(ctx context.Context, queue string, visibilitySeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, queue string) error
	Heartbeat(ctx context.Context, id string, visibilitySeconds int) (bool, error)
	Ack(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (*model.FailJobResult, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Stats(ctx context.Context, queue string) (*model.JobStats, error)
}

// ProjectionRepository builds the denormalized read views.
// Missing join targets yield nil joined fields, never dropped rows.
type ProjectionRepository interface {
	ListRuns(ctx context.Context, limit int) ([]*model.RunView, error)
	ListProspects(ctx context.Context, limit int) ([]*model.ProspectView, error)
	GetRunView(ctx context.Context, id string) (*model.RunView, error)
	GetProspectView(ctx context.Context, id string) (*model.ProspectView, error)
	GetRunContext(ctx context.Context, runID string) (*model.RunContext, error)
	GetProspectDetail(ctx context.Context, id string) (*model.ProspectDetail, error)
}

// ReaperRepository defines queue housekeeping operations.
type ReaperRepository interface {
	// RequeueExpired returns expired reservations to pending, or dead-letters
	// them once they have used every attempt.
	RequeueExpired(ctx context.Context, batchSize int) (int64, error)
	DeleteDeadJobs(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error)
}

// ChangePublisher emits change events after a write has committed.
type ChangePublisher interface {
	Publish(ctx context.Context, evt model.ChangeEvent) error
}
