package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/changefeed"
	"github.com/target/prospector/internal/core"
	"github.com/target/prospector/internal/data"
	"github.com/target/prospector/internal/data/memory"
	"github.com/target/prospector/internal/observability/metrics"
	"github.com/target/prospector/internal/realtime"
)

// Realtime is the change feed plumbing of one replica.
type Realtime struct {
	Registry *realtime.Registry
	// Publisher is what services publish committed changes to. It discards
	// everything when row triggers are the source.
	Publisher core.ChangePublisher
	// Relays feed the registry from an external source; each runs until
	// its context ends.
	Relays []*changefeed.Relay
	// Cache backs live event enrichment.
	Cache core.CacheRepository
}

// RealtimeDeps groups dependencies for BuildRealtime.
type RealtimeDeps struct {
	Config  config.RealtimeConfig
	DB      *pgxpool.Pool
	Redis   redis.UniversalClient
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// BuildRealtime wires the registry to the configured change source and broker:
//
//	app + memory:     services -> registry
//	app + redis:      services -> redis pub/sub -> relay -> registry (every replica)
//	postgres + any:   triggers -> NOTIFY -> relay -> registry (every replica LISTENs)
func BuildRealtime(deps RealtimeDeps) (*Realtime, error) {
	cfg := deps.Config
	logger := deps.Logger
	reg := realtime.NewRegistry(realtime.Options{
		ClientBuffer:   cfg.ClientBuffer,
		TopicBuffer:    cfg.TopicBuffer,
		PublishTimeout: cfg.PublishTimeout,
		Logger:         logger,
		Metrics:        deps.Metrics,
	})
	rt := &Realtime{Registry: reg}

	switch cfg.Source {
	case config.ChangeSourcePostgres:
		if deps.DB == nil {
			reg.Close()
			return nil, errors.New("postgres change source requires a database pool")
		}
		if cfg.Broker == config.BrokerRedis {
			logger.Info("redis broker unused: every replica listens to postgres directly")
		}
		rt.Publisher = changefeed.Discard{}
		stream := data.NewChangeStream(deps.DB, deps.DB, logger)
		rt.Relays = append(rt.Relays, changefeed.NewRelay(stream, reg, changefeed.RelayOptions{
			Name:     "postgres_change_relay",
			Logger:   logger,
			OnResync: resyncClients(reg, logger),
		}))

	default:
		if cfg.Broker == config.BrokerRedis {
			if deps.Redis == nil {
				reg.Close()
				return nil, errors.New("redis broker requires a redis client")
			}
			rt.Publisher = changefeed.NewBestEffort(
				changefeed.NewRedisPublisher(deps.Redis, cfg.ChannelPrefix), logger, deps.Metrics)
			source := changefeed.NewRedisSource(deps.Redis, cfg.ChannelPrefix, logger)
			rt.Relays = append(rt.Relays, changefeed.NewRelay(source, reg, changefeed.RelayOptions{
				Name:     "redis_change_relay",
				Logger:   logger,
				OnResync: resyncClients(reg, logger),
			}))
		} else {
			rt.Publisher = changefeed.NewBestEffort(reg, logger, deps.Metrics)
		}
	}

	if cfg.EnrichCache == config.EnrichCacheRedis && deps.Redis != nil {
		rt.Cache = data.NewRedisCacheRepo(deps.Redis, "")
	} else {
		rt.Cache = memory.NewCache(nil)
	}

	logger.Info("realtime configured",
		"source", cfg.Source,
		"broker", cfg.Broker,
		"relays", len(rt.Relays),
		"enrich_cache", cfg.EnrichCache,
	)
	return rt, nil
}

// resyncClients drops every client after a relay gap so each one reconnects
// and takes a fresh snapshot.
func resyncClients(reg *realtime.Registry, logger *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		n := reg.DropAll(realtime.ReasonResync, nil)
		logger.InfoContext(ctx, "change feed resumed; clients told to resync", "clients", n)
	}
}

// RunRelays runs every relay until ctx ends.
func (rt *Realtime) RunRelays(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rt.Relays {
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}

// Close stops the registry and drops every client.
func (rt *Realtime) Close() {
	rt.Registry.Close()
}
