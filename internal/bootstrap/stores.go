package bootstrap

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/data/memory"
	httpx "github.com/target/prospector/internal/http"
)

// Stores holds the repositories backing service ports for one store driver.
type Stores struct {
	Dispatch   core.DispatchRepository
	Runs       core.RunRepository
	Prospects  core.ProspectRepository
	Audiences  core.AudienceRepository
	Projection core.ProjectionRepository
	Queue      core.JobQueue
	Reaper     core.ReaperRepository

	// HealthChecks reports the store's dependencies on /healthz.
	HealthChecks map[string]httpx.HealthCheck
}

// StoreDeps groups what the store builders need.
type StoreDeps struct {
	Config *config.AppConfig
	DB     *pgxpool.Pool // Required for the postgres driver
	Logger *slog.Logger
}

// BuildStores builds repositories for the configured driver. No business rules here.
func BuildStores(deps StoreDeps) Stores {
	if deps.Config.Store.Driver == config.StoreDriverMemory {
		return buildMemoryStores(deps)
	}
	return buildPostgresStores(deps)
}

func buildPostgresStores(deps StoreDeps) Stores {
	pool := deps.DB
	logger := deps.Logger
	queue := data.NewJobQueue(pool, data.JobQueueConfig{
		RetryDelay: deps.Config.Queue.RetryDelay,
		Logger:     logger,
		Listener:   pool,
	})

	return Stores{
		Dispatch:   data.NewDispatchRepo(pool, data.DispatchRepoOptions{Logger: logger}),
		Runs:       data.NewRunRepo(pool, data.RunRepoOptions{Logger: logger}),
		Prospects:  data.NewProspectRepo(pool, data.ProspectRepoOptions{Logger: logger}),
		Audiences:  data.NewAudienceRepo(pool, data.AudienceRepoOptions{Logger: logger}),
		Projection: data.NewProjectionRepo(pool, logger),
		Queue:      queue,
		Reaper:     &data.QueueReaper{Queue: queue, Name: deps.Config.Dispatch.QueueName},
		HealthChecks: map[string]httpx.HealthCheck{
			"postgres": pool.Ping,
		},
	}
}

func buildMemoryStores(deps StoreDeps) Stores {
	deps.Logger.Warn("using in-memory store; data is lost on restart")
	s := memory.New(memory.Options{RetryDelay: deps.Config.Queue.RetryDelay})
	return Stores{
		Dispatch:   s,
		Runs:       s.Runs(),
		Prospects:  s.Prospects(),
		Audiences:  s.Audiences(),
		Projection: s.Projection(),
		Queue:      s.Queue(),
		Reaper:     s.Reaper(deps.Config.Dispatch.QueueName),
	}
}
