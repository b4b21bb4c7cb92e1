package config

import (
	"strings"
	"time"
)

// DispatchConfig bounds what an operator may request when starting a run.
type DispatchConfig struct {
	// MaxProspects is the upper clamp for max_prospects on a new run.
	MaxProspects int `env:"DISPATCH_MAX_PROSPECTS" envDefault:"25"`

	// DefaultProspects is used when a request omits max_prospects.
	DefaultProspects int `env:"DISPATCH_DEFAULT_PROSPECTS" envDefault:"5"`

	// QueueName is stamped on every job row and used as the notification key.
	QueueName string `env:"DISPATCH_QUEUE_NAME" envDefault:"worker_jobs"`
}

// Sanitize applies guardrails to dispatch configuration values.
func (d *DispatchConfig) Sanitize() {
	if d.MaxProspects < 1 {
		d.MaxProspects = 1
	}
	if d.DefaultProspects < 1 {
		d.DefaultProspects = 1
	}
	if d.DefaultProspects > d.MaxProspects {
		d.DefaultProspects = d.MaxProspects
	}
	d.QueueName = strings.TrimSpace(d.QueueName)
	if d.QueueName == "" {
		d.QueueName = "worker_jobs"
	}
}

// QueueConfig controls job visibility and retry behaviour.
type QueueConfig struct {
	// VisibilityTimeout is the default lease a reserved job holds before it becomes visible again.
	VisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"300s"`

	// MaxVisibility caps visibility requested by workers.
	MaxVisibility time.Duration `env:"QUEUE_MAX_VISIBILITY" envDefault:"1h"`

	// MaxAttempts is how many reservations a job gets before it is dead-lettered on failure.
	MaxAttempts int `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`

	// RetryDelay is how long a failed job stays invisible before it can be reserved again.
	RetryDelay time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"30s"`

	// NotifyWaitWindow bounds a single LISTEN wait in the job notifier.
	NotifyWaitWindow time.Duration `env:"QUEUE_NOTIFY_WAIT_WINDOW" envDefault:"1m"`

	// NotifyBackoff is the pause after a LISTEN error.
	NotifyBackoff time.Duration `env:"QUEUE_NOTIFY_BACKOFF" envDefault:"250ms"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.VisibilityTimeout < time.Second {
		q.VisibilityTimeout = time.Second
	}
	if q.MaxVisibility < q.VisibilityTimeout {
		q.MaxVisibility = q.VisibilityTimeout
	}
	if q.MaxAttempts < 1 {
		q.MaxAttempts = 1
	}
	if q.RetryDelay < 0 {
		q.RetryDelay = 0
	}
	if q.NotifyWaitWindow <= 0 {
		q.NotifyWaitWindow = time.Minute
	}
	if q.NotifyBackoff <= 0 {
		q.NotifyBackoff = 250 * time.Millisecond
	}
}
