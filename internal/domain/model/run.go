package model

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a workflow run.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type RunStatus string

const (
	// RunStatusQueued is the state a run is created in.
	RunStatusQueued RunStatus = "queued"
	// RunStatusRunning means a worker has picked the run up.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted is terminal.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed is terminal.
	RunStatusFailed RunStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RunStatus) UnmarshalText(text []byte) error {
	v := RunStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid RunStatus: %q", string(text))
	}
	*s = v
	return nil
}

// Valid returns true if the RunStatus is valid.
func (s RunStatus) Valid() bool {
	return s == RunStatusQueued || s == RunStatusRunning || s == RunStatusCompleted || s == RunStatusFailed
}

// Terminal returns true for completed and failed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Rank orders statuses along the lifecycle. Both terminal states share the top rank.
func (s RunStatus) Rank() int {
	switch s {
	case RunStatusQueued:
		return 0
	case RunStatusRunning:
		return 1
	case RunStatusCompleted, RunStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// A run can fail before it starts, but it cannot complete without running.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusQueued:
		return next == RunStatusRunning || next == RunStatusFailed
	case RunStatusRunning:
		return next == RunStatusCompleted || next == RunStatusFailed
	default:
		return false
	}
}

// PriorStatuses returns the statuses a run may be in for a transition into next to be accepted.
func PriorStatuses(next RunStatus) []RunStatus {
	var prior []RunStatus
	for _, s := range []RunStatus{RunStatusQueued, RunStatusRunning, RunStatusCompleted, RunStatusFailed} {
		if s.CanTransitionTo(next) {
			prior = append(prior, s)
		}
	}
	return prior
}

// WorkflowRun is one invocation of the prospecting workflow. JSON field names
// mirror the table columns so that app-published and trigger-published row
// images are interchangeable.
type WorkflowRun struct {
	ID           string     `json:"id"            db:"id"`
	AudienceID   *string    `json:"audience_id"   db:"audience_id"`
	Location     string     `json:"location"      db:"location"`
	MaxProspects int        `json:"max_prospects" db:"max_prospects"`
	Status       RunStatus  `json:"status"        db:"status"`
	Error        *string    `json:"error"         db:"error"`
	StartedAt    *time.Time `json:"started_at"    db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"   db:"finished_at"`
	CreatedAt    time.Time  `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"    db:"updated_at"`
}

// StartRunRequest is the operator's request to launch a run.
type StartRunRequest struct {
	AudienceID   string `json:"audience_id"   validate:"required"`
	Location     string `json:"location"      validate:"required,max=128"`
	MaxProspects int    `json:"max_prospects"`
}

// RunHandle is returned to the operator after a successful dispatch.
type RunHandle struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}

// CreateRunParams is what the dispatcher hands to the store after validation and clamping.
type CreateRunParams struct {
	AudienceID   string
	Location     string
	MaxProspects int
	Queue        string
	MaxAttempts  int
}

// TransitionRunRequest is a worker status report.
type TransitionRunRequest struct {
	RunID  string    `json:"-"               validate:"required"`
	Status RunStatus `json:"status"          validate:"required"`
	Error  *string   `json:"error,omitempty" validate:"omitempty,max=4000"`
}

// TransitionResult is the outcome of a status report. Changed is false when
// the run was already in the requested state.
type TransitionResult struct {
	Run     *WorkflowRun `json:"run"`
	Changed bool         `json:"changed"`
}
