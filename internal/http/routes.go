// Package httpx provides the HTTP API for operators, workers and live observers.
package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Dispatcher *service.DispatcherService
	Worker     *service.WorkerService
	Jobs       *service.JobService
	Audiences  *service.AudienceService
	Projection *service.ProjectionService
	Feeds      *service.FeedService

	// Optional: Prometheus exposition and request metrics.
	Metrics     *metrics.Metrics
	MetricsPath string

	// Stream timing; zero selects defaults.
	Heartbeat    time.Duration
	WriteTimeout time.Duration

	// Optional: dependency checks reported by /healthz.
	HealthChecks map[string]HealthCheck

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with logging, recovery
// and request metrics.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	registerRunRoutes(mux, &RunHandlers{
		Dispatcher: services.Dispatcher,
		Projection: services.Projection,
		Logger:     logger,
	})
	audiences := &AudienceHandlers{Svc: services.Audiences, Logger: logger}
	registerCRUD(mux, crudRoutes{
		Base:    "/api/audiences",
		Create:  audiences.Create,
		List:    audiences.List,
		GetByID: audiences.GetByID,
		Update:  audiences.Update,
		Delete:  audiences.Delete,
	})
	registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs, Logger: logger})
	registerWorkerRoutes(mux, &WorkerHandlers{Svc: services.Worker, Logger: logger})

	stream := &StreamHandlers{
		Feeds:        services.Feeds,
		Heartbeat:    services.Heartbeat,
		WriteTimeout: services.WriteTimeout,
		Logger:       logger,
	}
	mux.HandleFunc("GET /api/stream", stream.Stream)

	health := healthHandler(services.HealthChecks)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics.Handler())
	}

	return Chain(mux,
		Recover(logger),
		Logging(logger),
		Metrics(services.Metrics),
	)
}

func registerRunRoutes(mux *http.ServeMux, h *RunHandlers) {
	mux.HandleFunc("POST /api/runs", h.StartRun)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/prospects", h.ListProspects)
	mux.HandleFunc("GET /api/prospects/{id}", h.GetProspect)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("GET /api/jobs/reserve", h.Reserve)
	mux.HandleFunc("GET /api/jobs/stats", h.Stats)
	mux.HandleFunc("POST /api/jobs/{id}/heartbeat", h.Heartbeat)
	mux.HandleFunc("POST /api/jobs/{id}/ack", h.Ack)
	mux.HandleFunc("POST /api/jobs/{id}/fail", h.Fail)
}

func registerWorkerRoutes(mux *http.ServeMux, h *WorkerHandlers) {
	mux.HandleFunc("POST /api/worker/runs/{id}/status", h.TransitionRun)
	mux.HandleFunc("POST /api/worker/runs/{id}/prospects", h.AddProspect)
	mux.HandleFunc("POST /api/worker/prospects/{id}/analysis", h.RecordAnalysis)
	mux.HandleFunc("POST /api/worker/prospects/{id}/contacts", h.AddContacts)
}

// crudRoutes describes the standard CRUD routes for a resource base path.
type crudRoutes struct {
	Base       string
	Create     http.HandlerFunc
	List       http.HandlerFunc
	GetByID    http.HandlerFunc
	Update     http.HandlerFunc
	Delete     http.HandlerFunc
	Middleware func(http.Handler) http.Handler
}

// registerCRUD registers standard CRUD routes for a resource base path, applying mw if non-nil.
func registerCRUD(mux *http.ServeMux, cfg crudRoutes) {
	if cfg.Base == "" {
		panic("registerCRUD: Base must not be empty") //nolint:forbidigo // Fail fast during server setup.
	}
	if cfg.Create == nil ||
		cfg.List == nil ||
		cfg.GetByID == nil ||
		cfg.Update == nil ||
		cfg.Delete == nil {
		panic("registerCRUD: nil handler for base " + cfg.Base) //nolint:forbidigo // Fail fast during server setup.
	}

	wrap := func(h http.HandlerFunc) http.Handler {
		if cfg.Middleware != nil {
			return cfg.Middleware(h)
		}
		return h
	}
	mux.Handle("POST "+cfg.Base, wrap(cfg.Create))
	mux.Handle("GET "+cfg.Base, wrap(cfg.List))
	mux.Handle("GET "+cfg.Base+"/{id}", wrap(cfg.GetByID))
	mux.Handle("PUT "+cfg.Base+"/{id}", wrap(cfg.Update))
	mux.Handle("DELETE "+cfg.Base+"/{id}", wrap(cfg.Delete))
}
