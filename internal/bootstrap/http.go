package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/prospector/config"
	httpx "github.com/target/prospector/internal/http"
	"github.com/target/prospector/internal/service"
)

// shutdownWaitTimeout is the maximum time to wait for the server to drain.
const shutdownWaitTimeout = 15 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildRouterServices maps the service container onto the router's dependencies.
func BuildRouterServices(cfg *HTTPServerConfig) httpx.RouterServices {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	s := cfg.Services
	return httpx.RouterServices{
		Dispatcher:   s.Dispatcher,
		Worker:       s.Worker,
		Jobs:         s.Jobs,
		Audiences:    s.Audiences,
		Projection:   s.Projection,
		Feeds:        s.Feeds,
		Metrics:      s.Metrics,
		MetricsPath:  appCfg.Observability.Metrics.Path,
		Heartbeat:    appCfg.Realtime.Heartbeat,
		WriteTimeout: appCfg.Realtime.WriteTimeout,
		HealthChecks: s.HealthChecks,
		Logger:       cfg.Logger,
	}
}

// NewHTTPServer creates the HTTP server without starting it. The server
// write timeout is disabled for streams; SSE writes set their own deadline.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
		cfg.Logger = logger
	}
	httpCfg := config.HTTPConfig{}
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	addr := httpCfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(BuildRouterServices(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       httpCfg.ReadTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
	}
}

// ServeHTTP listens until the server is shut down.
func ServeHTTP(server *http.Server, logger *slog.Logger) error {
	logger.Info("starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server     *http.Server
	JobService *service.JobService
	Logger     *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Stop job listeners first so long-polling reservers fall back to their timers.
	if cfg.JobService != nil {
		cfg.JobService.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		// Long polls still waiting out their timers are cut off.
		if cfg.Logger != nil {
			cfg.Logger.Warn("HTTP server drain timed out; closing connections")
		}
		if cerr := cfg.Server.Close(); cerr != nil {
			return fmt.Errorf("close http server: %w", cerr)
		}
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
