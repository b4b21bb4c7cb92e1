package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - reaper",
			input:    "reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{
			name:  "services with spaces and duplicates",
			input: " http , reaper , http ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only spaces and commas", input: " , , ", expectError: true},
		{name: "invalid service name", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabled(t *testing.T) {
	cfg := &AppConfig{Services: "HTTP"}
	if !cfg.ServiceEnabled(ServiceModeHTTP) {
		t.Errorf("ServiceEnabled(http) expected true")
	}
	if cfg.ServiceEnabled(ServiceModeReaper) {
		t.Errorf("ServiceEnabled(reaper) expected false")
	}

	cfg.Services = "bogus"
	if cfg.ServiceEnabled(ServiceModeHTTP) {
		t.Errorf("ServiceEnabled(http) with invalid config: expected false, got true")
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Dispatch.MaxProspects != 25 {
		t.Errorf("expected default max prospects 25, got %d", cfg.Dispatch.MaxProspects)
	}
	if cfg.Dispatch.DefaultProspects != 5 {
		t.Errorf("expected default prospects 5, got %d", cfg.Dispatch.DefaultProspects)
	}
	if cfg.Queue.VisibilityTimeout != 300*time.Second {
		t.Errorf("expected 300s visibility, got %s", cfg.Queue.VisibilityTimeout)
	}
	if cfg.Realtime.Source != ChangeSourceApp || cfg.Realtime.Broker != BrokerMemory {
		t.Errorf("unexpected realtime defaults: %+v", cfg.Realtime)
	}
	if cfg.Store.Driver != StoreDriverPostgres {
		t.Errorf("expected postgres store, got %q", cfg.Store.Driver)
	}
	if cfg.UsesRedis() {
		t.Errorf("default config should not need redis")
	}
}

func TestAppConfig_ParseRealtimeEnv(t *testing.T) {
	var cfg AppConfig
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"REALTIME_SOURCE":        "Postgres",
		"REALTIME_BROKER":        "redis",
		"REALTIME_CLIENT_BUFFER": "0",
		"DB_POOL_MAX_CONNS":      "2",
		"STORE_DRIVER":           " MEMORY ",
	}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Realtime.Source != ChangeSourcePostgres {
		t.Errorf("expected postgres source, got %q", cfg.Realtime.Source)
	}
	if !cfg.UsesRedis() {
		t.Errorf("redis broker should require redis")
	}
	if cfg.Realtime.ClientBuffer != 1 {
		t.Errorf("expected client buffer clamped to 1, got %d", cfg.Realtime.ClientBuffer)
	}
	if cfg.Postgres.MaxConns != 4 {
		t.Errorf("expected pool clamped to 4, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Store.Driver != StoreDriverMemory {
		t.Errorf("expected memory store, got %q", cfg.Store.Driver)
	}
}

func TestDispatchConfig_Sanitize(t *testing.T) {
	cfg := DispatchConfig{MaxProspects: 0, DefaultProspects: 50, QueueName: "  "}
	cfg.Sanitize()

	if cfg.MaxProspects != 1 || cfg.DefaultProspects != 1 {
		t.Fatalf("expected both bounds clamped to 1, got %+v", cfg)
	}
	if cfg.QueueName != "worker_jobs" {
		t.Fatalf("expected default queue name, got %q", cfg.QueueName)
	}
}

func TestHTTPConfig_SanitizeLongPoll(t *testing.T) {
	cfg := HTTPConfig{WriteTimeout: 30 * time.Second, MaxLongPollWait: time.Minute}
	cfg.Sanitize()

	if cfg.MaxLongPollWait != 25*time.Second {
		t.Fatalf("expected long poll capped below write timeout, got %s", cfg.MaxLongPollWait)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, Path: " metrics "}
	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.Path != "/metrics" {
		t.Fatalf("expected normalised path, got %q", cfg.Path)
	}
	if cfg.Namespace != "prospector" {
		t.Fatalf("expected default namespace, got %q", cfg.Namespace)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	var cfg AppConfig
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"OBSERVABILITY_NOTIFICATIONS_ENABLED":               "true",
		"OBSERVABILITY_NOTIFICATIONS_TIMEOUT":               "0s",
		"OBSERVABILITY_NOTIFICATIONS_RETRY_LIMIT":           "-2",
		"OBSERVABILITY_NOTIFICATIONS_SLACK_ENABLED":         "true",
		"OBSERVABILITY_NOTIFICATIONS_SLACK_WEBHOOK_URL":     " https://hooks.example/x ",
		"OBSERVABILITY_NOTIFICATIONS_SLACK_RUN_URL_PREFIX":  "https://prospector.local/api/runs/",
		"OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_ENABLED":     "true",
		"OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_ROUTING_KEY": "  ",
	}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	n := cfg.Observability.Notifications
	if n.Timeout != 5*time.Second || n.RetryLimit != 0 {
		t.Fatalf("expected clamped timing, got timeout=%s retries=%d", n.Timeout, n.RetryLimit)
	}
	if !n.Slack.Enabled || n.Slack.WebhookURL != "https://hooks.example/x" {
		t.Fatalf("expected slack enabled with trimmed url, got %+v", n.Slack)
	}
	if n.Slack.RunURLPrefix != "https://prospector.local/api/runs" {
		t.Fatalf("expected trailing slash trimmed, got %q", n.Slack.RunURLPrefix)
	}
	if n.PagerDuty.Enabled {
		t.Fatalf("pagerduty without routing key should be disabled")
	}
	if !n.AnySinkEnabled() {
		t.Fatalf("expected a sink to be enabled")
	}

	n.Enabled = false
	n.Sanitize()
	if n.AnySinkEnabled() {
		t.Fatalf("master switch should disable every sink")
	}
}
