package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobStatus represents the current status of a queued job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be reserved.
	JobStatusPending JobStatus = "pending"
	// JobStatusReserved indicates a worker holds the job's lease.
	JobStatusReserved JobStatus = "reserved"
	// JobStatusDead indicates the job exhausted its attempts.
	JobStatusDead JobStatus = "dead"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusReserved || s == JobStatusDead
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// RunJobPayload is the message a worker receives for one run.
type RunJobPayload struct {
	RunID        string `json:"run_id"`
	AudienceID   string `json:"audience_id"`
	Location     string `json:"location"`
	MaxProspects int    `json:"max_prospects"`
}

// Job is a queue message together with its delivery bookkeeping.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Queue          string          `json:"queue"                      db:"queue"`
	RunID          string          `json:"run_id"                     db:"run_id"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Attempts       int             `json:"attempts"                   db:"attempts"`
	MaxAttempts    int             `json:"max_attempts"               db:"max_attempts"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	VisibleAt      time.Time       `json:"visible_at"                 db:"visible_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	EnqueuedAt     time.Time       `json:"enqueued_at"                db:"enqueued_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// DecodePayload unmarshals the job payload.
func (j *Job) DecodePayload() (RunJobPayload, error) {
	var p RunJobPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode job payload: %w", err)
	}
	return p, nil
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Pending  int `json:"pending"`
	Reserved int `json:"reserved"`
	Dead     int `json:"dead"`
}

// FailJobResult reports whether a failed job will be retried.
type FailJobResult struct {
	Found bool `json:"found"`
	Dead  bool `json:"dead"`
}
