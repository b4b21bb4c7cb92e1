package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/changefeed"
	"github.com/target/prospector/internal/domain/model"
	httpx "github.com/target/prospector/internal/http"
	"github.com/target/prospector/internal/realtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T, extra map[string]string) *config.AppConfig {
	t.Helper()
	vars := map[string]string{
		"STORE_DRIVER": "memory",
		"SERVICES":     "http,reaper",
		"HTTP_ADDR":    "127.0.0.1:0",
	}
	for k, v := range extra {
		vars[k] = v
	}
	var cfg config.AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: vars}))
	cfg.Sanitize()
	return &cfg
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := memoryConfig(t, nil)
	require.NoError(t, ValidateServiceConfig(cfg))

	cfg.Realtime.Source = config.ChangeSourcePostgres
	require.Error(t, ValidateServiceConfig(cfg))

	cfg = memoryConfig(t, map[string]string{"SERVICES": "scheduler"})
	require.Error(t, ValidateServiceConfig(cfg))
}

func TestGetEnabledServices(t *testing.T) {
	cfg := memoryConfig(t, map[string]string{"SERVICES": "reaper, http"})
	assert.Equal(t, []string{"http", "reaper"}, GetEnabledServices(cfg))

	cfg.Services = "bogus"
	assert.Empty(t, GetEnabledServices(cfg))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}

func TestBuildRealtime_RedisBrokerNeedsClient(t *testing.T) {
	cfg := memoryConfig(t, map[string]string{"REALTIME_BROKER": "redis"})
	_, err := BuildRealtime(RealtimeDeps{Config: cfg.Realtime, Logger: discardLogger()})
	require.Error(t, err)

	cfg = memoryConfig(t, map[string]string{"REALTIME_SOURCE": "postgres"})
	_, err = BuildRealtime(RealtimeDeps{Config: cfg.Realtime, Logger: discardLogger()})
	require.Error(t, err)
}

func TestBuildRealtime_PostgresSourceDiscardsServicePublishes(t *testing.T) {
	cfg := memoryConfig(t, map[string]string{"REALTIME_SOURCE": "postgres"})
	rt, err := BuildRealtime(RealtimeDeps{Config: cfg.Realtime, DB: new(pgxpool.Pool), Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	assert.Equal(t, changefeed.Discard{}, rt.Publisher)
	require.Len(t, rt.Relays, 1)
}

func TestResyncClients(t *testing.T) {
	reg := realtime.NewRegistry(realtime.Options{})
	t.Cleanup(reg.Close)
	sub, err := reg.Subscribe("c1", model.TableWorkflowRuns, nil)
	require.NoError(t, err)

	resyncClients(reg, discardLogger())(context.Background())

	var de *realtime.DeliveryError
	require.ErrorAs(t, sub.Client().Err(), &de)
	assert.Equal(t, realtime.ReasonResync, de.Reason)
}

func TestNewServices_MemoryStore(t *testing.T) {
	cfg := memoryConfig(t, nil)
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(svcs.Realtime.Close)
	t.Cleanup(svcs.Jobs.Close)

	require.NotNil(t, svcs.Realtime.Publisher)
	assert.Empty(t, svcs.Realtime.Relays)
	assert.NotNil(t, svcs.Metrics)

	ctx := context.Background()
	aud, err := svcs.Audiences.Create(ctx, &model.CreateAudienceRequest{Name: "Local"})
	require.NoError(t, err)
	handle, err := svcs.Dispatcher.StartRun(ctx, model.StartRunRequest{AudienceID: aud.ID, Location: "Durban"})
	require.NoError(t, err)

	stats, err := svcs.Jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	router := httpx.NewRouter(BuildRouterServices(&HTTPServerConfig{Config: cfg, Services: svcs, Logger: discardLogger()}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+handle.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunServices_StopsOnCancel(t *testing.T) {
	cfg := memoryConfig(t, nil)
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServices(ctx, &ServiceOrchestrationConfig{Config: cfg, Services: svcs, Logger: discardLogger()})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("services did not stop")
	}
}

func TestBuildFailureNotifier(t *testing.T) {
	disabled := buildFailureNotifier(discardLogger(), config.ObservabilityNotificationsConfig{})
	assert.False(t, disabled.Enabled())

	cfg := config.ObservabilityNotificationsConfig{
		Enabled: true,
		Slack:   config.SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.example/x"},
		PagerDuty: config.PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "routing",
		},
	}
	assert.True(t, buildFailureNotifier(discardLogger(), cfg).Enabled())

	cfg.Slack.WebhookURL = ""
	cfg.PagerDuty.Enabled = false
	assert.False(t, buildFailureNotifier(discardLogger(), cfg).Enabled(), "invalid sinks are skipped")
}
