package config

import (
	"strings"
	"time"
)

const defaultMetricsNamespace = "prospector"

// ObservabilityConfig groups metrics exposition and dead-letter alerting.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls the Prometheus scrape endpoint.
type ObservabilityMetricsConfig struct {
	Enabled   bool   `env:"METRICS_ENABLED"   envDefault:"true"`
	Path      string `env:"METRICS_PATH"      envDefault:"/metrics"`
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"prospector"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
	c.Namespace = strings.TrimSpace(c.Namespace)
	if c.Namespace == "" {
		c.Namespace = defaultMetricsNamespace
	}
}

// IsEnabled returns true when the metrics endpoint should be mounted.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.Path != ""
}

// ObservabilityNotificationsConfig controls alerts for dead-lettered run jobs.
type ObservabilityNotificationsConfig struct {
	Enabled    bool                        `env:"OBSERVABILITY_NOTIFICATIONS_ENABLED"     envDefault:"false"`
	Timeout    time.Duration               `env:"OBSERVABILITY_NOTIFICATIONS_TIMEOUT"     envDefault:"5s"`
	RetryLimit int                         `env:"OBSERVABILITY_NOTIFICATIONS_RETRY_LIMIT" envDefault:"3"`
	Slack      SlackNotificationConfig     `                                                                 envPrefix:"OBSERVABILITY_NOTIFICATIONS_SLACK_"`
	PagerDuty  PagerDutyNotificationConfig `                                                                 envPrefix:"OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_"`
}

// Sanitize clamps timings and disables sinks that lack credentials.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	c.Slack.WebhookURL = strings.TrimSpace(c.Slack.WebhookURL)
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	c.Slack.RunURLPrefix = strings.TrimRight(strings.TrimSpace(c.Slack.RunURLPrefix), "/")
	c.PagerDuty.RoutingKey = strings.TrimSpace(c.PagerDuty.RoutingKey)

	if !c.Enabled {
		c.Slack.Enabled = false
		c.PagerDuty.Enabled = false
		return
	}
	if c.Slack.WebhookURL == "" {
		c.Slack.Enabled = false
	}
	if c.PagerDuty.RoutingKey == "" {
		c.PagerDuty.Enabled = false
	}
}

// AnySinkEnabled reports whether at least one sink survived Sanitize.
func (c *ObservabilityNotificationsConfig) AnySinkEnabled() bool {
	return c.Slack.Enabled || c.PagerDuty.Enabled
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	Enabled      bool   `env:"ENABLED"        envDefault:"false"`
	WebhookURL   string `env:"WEBHOOK_URL"`
	Channel      string `env:"CHANNEL"`
	Username     string `env:"USERNAME"       envDefault:"prospector"`
	RunURLPrefix string `env:"RUN_URL_PREFIX"`
}

// PagerDutyNotificationConfig controls PagerDuty Events API fan-out.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"prospector"`
	Component  string `env:"COMPONENT"   envDefault:"prospector"`
}
