package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/prospector/config"
	domainjob "github.com/target/prospector/internal/domain/job"
	httpx "github.com/target/prospector/internal/http"
	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/observability/notify/pagerduty"
	"github.com/target/prospector/internal/observability/notify/slack"
	"github.com/target/prospector/internal/service"
	"github.com/target/prospector/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Dispatcher *service.DispatcherService
	Worker     *service.WorkerService
	Jobs       *service.JobService
	Audiences  *service.AudienceService
	Projection *service.ProjectionService
	Feeds      *service.FeedService
	Reaper     *service.ReaperService

	Realtime     *Realtime
	Metrics      *metrics.Metrics
	HealthChecks map[string]httpx.HealthCheck
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *pgxpool.Pool         // nil with the memory store
	RedisClient redis.UniversalClient // nil unless a component needs Redis
	Logger      *slog.Logger
}

func buildMetrics(cfg config.ObservabilityMetricsConfig) *metrics.Metrics {
	if !cfg.IsEnabled() {
		return nil
	}
	return metrics.New(cfg.Namespace)
}

// NewServices wires repositories, the change feed and business services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := buildMetrics(cfg.Observability.Metrics)

	stores := BuildStores(StoreDeps{Config: cfg, DB: deps.DB, Logger: logger})
	rt, err := BuildRealtime(RealtimeDeps{
		Config:  cfg.Realtime,
		DB:      deps.DB,
		Redis:   deps.RedisClient,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build realtime: %w", err)
	}

	c, err := buildDomainServices(domainServicesOptions{
		Config:   cfg,
		Stores:   stores,
		Realtime: rt,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		rt.Close()
		return ServiceContainer{}, err
	}

	c.HealthChecks = stores.HealthChecks
	if deps.RedisClient != nil {
		if c.HealthChecks == nil {
			c.HealthChecks = make(map[string]httpx.HealthCheck)
		}
		client := deps.RedisClient
		c.HealthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return c, nil
}

type domainServicesOptions struct {
	Config   *config.AppConfig
	Stores   Stores
	Realtime *Realtime
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// buildDomainServices wires business services using repositories and the change feed.
func buildDomainServices(opts domainServicesOptions) (ServiceContainer, error) {
	cfg := opts.Config
	logger := opts.Logger
	publisher := opts.Realtime.Publisher

	dispatcher, err := service.NewDispatcherService(service.DispatcherServiceOptions{
		Repo:      opts.Stores.Dispatch,
		Publisher: publisher,
		Config: service.DispatcherConfig{
			MaxProspects:     cfg.Dispatch.MaxProspects,
			DefaultProspects: cfg.Dispatch.DefaultProspects,
			Queue:            cfg.Dispatch.QueueName,
			MaxAttempts:      cfg.Queue.MaxAttempts,
		},
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("dispatcher: %w", err)
	}

	worker, err := service.NewWorkerService(service.WorkerServiceOptions{
		Runs:      opts.Stores.Runs,
		Prospects: opts.Stores.Prospects,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("worker: %w", err)
	}

	visibility, err := domainjob.NewVisibilityPolicy(cfg.Queue.VisibilityTimeout, cfg.Queue.MaxVisibility)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("visibility policy: %w", err)
	}
	jobOpts := service.JobServiceOptions{
		Queue:      opts.Stores.Queue,
		QueueName:  cfg.Dispatch.QueueName,
		Visibility: visibility,
		NotifierOptions: domainjob.NotifierOptions{
			WaitWindow: cfg.Queue.NotifyWaitWindow,
			Backoff:    cfg.Queue.NotifyBackoff,
		},
		MaxLongPoll: cfg.HTTP.MaxLongPollWait,
		Logger:      logger,
		Metrics:     opts.Metrics,
	}
	if alerts := buildFailureNotifier(logger, cfg.Observability.Notifications); alerts.Enabled() {
		jobOpts.FailureNotifier = alerts
	}
	jobs, err := service.NewJobService(jobOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("jobs: %w", err)
	}

	audiences, err := service.NewAudienceService(service.AudienceServiceOptions{
		Repo:   opts.Stores.Audiences,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("audiences: %w", err)
	}

	projection, err := service.NewProjectionService(service.ProjectionServiceOptions{
		Repo:     opts.Stores.Projection,
		Cache:    opts.Realtime.Cache,
		CacheTTL: cfg.Realtime.EnrichCacheTTL,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("projection: %w", err)
	}

	feeds, err := service.NewFeedService(service.FeedServiceOptions{
		Registry:      opts.Realtime.Registry,
		Projection:    projection,
		SnapshotLimit: cfg.Realtime.SnapshotLimit,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("feeds: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    opts.Stores.Reaper,
		Config:  cfg.Reaper,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("reaper: %w", err)
	}

	return ServiceContainer{
		Dispatcher: dispatcher,
		Worker:     worker,
		Jobs:       jobs,
		Audiences:  audiences,
		Projection: projection,
		Feeds:      feeds,
		Reaper:     reaper,
		Realtime:   opts.Realtime,
		Metrics:    opts.Metrics,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until SIGINT/SIGTERM or until a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs the enabled services until ctx ends or one of them fails.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	svcs := cfg.Services

	g, gctx := errgroup.WithContext(ctx)

	if svcs.Realtime != nil && len(svcs.Realtime.Relays) > 0 {
		g.Go(func() error { return svcs.Realtime.RunRelays(gctx) })
	}

	if enabled[config.ServiceModeReaper] {
		logger.InfoContext(ctx, "background service started", "service", "reaper")
		g.Go(func() error {
			if err := svcs.Reaper.Run(gctx); err != nil {
				return fmt.Errorf("reaper failed: %w", err)
			}
			return nil
		})
	}

	if enabled[config.ServiceModeHTTP] {
		server := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: svcs, Logger: logger})
		g.Go(func() error { return ServeHTTP(server, logger) })
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down services...")
			// Streams only end once their clients are dropped.
			if svcs.Realtime != nil {
				svcs.Realtime.Close()
			}
			return ShutdownHTTPServer(ShutdownConfig{Server: server, JobService: svcs.Jobs, Logger: logger})
		})
	}

	err = g.Wait()
	if svcs.Jobs != nil {
		svcs.Jobs.Close()
	}
	if svcs.Realtime != nil {
		svcs.Realtime.Close()
	}
	if err != nil {
		logger.Error("service error", "error", err)
	}
	return err
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: logger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			RunURLPrefix: cfg.Slack.RunURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	logger.Info("dead-letter alerts configured", "sinks", len(sinks))
	return failurenotifier.NewService(failurenotifier.Options{Logger: logger, Sinks: sinks})
}
