package job

import (
	"errors"
	"time"
)

// ErrInvalidVisibility indicates the configured default visibility timeout is not positive.
var ErrInvalidVisibility = errors.New("default visibility must be positive")

// VisibilitySource identifies how a visibility timeout was resolved.
type VisibilitySource string

const (
	VisibilitySourceExplicit VisibilitySource = "explicit"
	VisibilitySourceDefault  VisibilitySource = "default"
	// VisibilitySourceClamped means the request fell outside [1s, max].
	VisibilitySourceClamped VisibilitySource = "clamped"
)

// VisibilityPolicy turns a worker's requested lease into whole seconds.
type VisibilityPolicy struct {
	def time.Duration
	max time.Duration
}

// NewVisibilityPolicy builds a policy. A max below the default is raised to it.
func NewVisibilityPolicy(def, maxVisibility time.Duration) (*VisibilityPolicy, error) {
	if def <= 0 {
		return nil, ErrInvalidVisibility
	}
	if maxVisibility < def {
		maxVisibility = def
	}
	return &VisibilityPolicy{def: def, max: maxVisibility}, nil
}

// Default returns the configured default visibility timeout.
func (p *VisibilityPolicy) Default() time.Duration { return p.def }

// VisibilityDecision captures the outcome of resolving a request.
type VisibilityDecision struct {
	Seconds   int
	Source    VisibilitySource
	Requested time.Duration
}

// Clamped reports whether the request was adjusted to fit the bounds.
func (d VisibilityDecision) Clamped() bool {
	return d.Source == VisibilitySourceClamped
}

// Resolve maps a requested duration to seconds. Zero selects the default.
func (p *VisibilityPolicy) Resolve(request time.Duration) VisibilityDecision {
	d := VisibilityDecision{Requested: request, Source: VisibilitySourceExplicit}
	switch {
	case request == 0:
		d.Source = VisibilitySourceDefault
		request = p.def
	case request < time.Second:
		d.Source = VisibilitySourceClamped
		request = time.Second
	case request > p.max:
		d.Source = VisibilitySourceClamped
		request = p.max
	}
	d.Seconds = int(request / time.Second)
	return d
}
