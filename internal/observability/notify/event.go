// Package notify carries operator alerts for run jobs that exhausted their
// delivery attempts. Sinks live in the slack and pagerduty subpackages.
package notify

import (
	"context"
	"time"
)

// Severities understood by every sink.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload describes one dead-lettered job. RunID and Attempts may
// be empty when the job could not be reloaded after failing.
type JobFailurePayload struct {
	JobID      string
	RunID      string
	Queue      string
	Attempts   int
	Error      string
	ErrorClass string
	Severity   string // defaults to SeverityCritical
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers a payload to one destination.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc lets a plain function act as a Sink.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure calls f; a nil SinkFunc drops the payload.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
