package config

import (
	"strings"
	"time"
)

// ChangeSource selects where change events originate.
type ChangeSource string

const (
	// ChangeSourceApp publishes from the service layer after each commit.
	ChangeSourceApp ChangeSource = "app"
	// ChangeSourcePostgres relies on row triggers and LISTEN/NOTIFY.
	ChangeSourcePostgres ChangeSource = "postgres"
)

// Broker selects how change events reach the subscription registry.
type Broker string

const (
	// BrokerMemory delivers directly into the local registry.
	BrokerMemory Broker = "memory"
	// BrokerRedis fans events out across replicas through Redis pub/sub.
	BrokerRedis Broker = "redis"
)

// EnrichCache selects the cache used for live event enrichment.
type EnrichCache string

const (
	EnrichCacheMemory EnrichCache = "memory"
	EnrichCacheRedis  EnrichCache = "redis"
)

// RealtimeConfig contains change feed and subscription registry configuration.
type RealtimeConfig struct {
	Source ChangeSource `env:"REALTIME_SOURCE" envDefault:"app"`
	Broker Broker       `env:"REALTIME_BROKER" envDefault:"memory"`

	// ClientBuffer is the per-client mailbox size. A client that falls this far behind is dropped.
	ClientBuffer int `env:"REALTIME_CLIENT_BUFFER" envDefault:"256"`

	// TopicBuffer is the per-table inbox size in front of each dispatch loop.
	TopicBuffer int `env:"REALTIME_TOPIC_BUFFER" envDefault:"1024"`

	PublishTimeout time.Duration `env:"REALTIME_PUBLISH_TIMEOUT" envDefault:"2s"`
	Heartbeat      time.Duration `env:"REALTIME_HEARTBEAT"       envDefault:"15s"`
	WriteTimeout   time.Duration `env:"REALTIME_WRITE_TIMEOUT"   envDefault:"10s"`

	// ChannelPrefix namespaces Redis pub/sub channels and the Postgres NOTIFY channel.
	ChannelPrefix string `env:"REALTIME_CHANNEL_PREFIX" envDefault:"prospector:changes:"`

	// SnapshotLimit is the row count sent per table when a stream opens.
	SnapshotLimit int `env:"REALTIME_SNAPSHOT_LIMIT" envDefault:"50"`

	EnrichCache    EnrichCache   `env:"REALTIME_ENRICH_CACHE"     envDefault:"memory"`
	EnrichCacheTTL time.Duration `env:"REALTIME_ENRICH_CACHE_TTL" envDefault:"5m"`
}

// Sanitize applies guardrails to realtime configuration values.
func (r *RealtimeConfig) Sanitize() {
	r.Source = ChangeSource(strings.ToLower(strings.TrimSpace(string(r.Source))))
	if r.Source != ChangeSourcePostgres {
		r.Source = ChangeSourceApp
	}
	r.Broker = Broker(strings.ToLower(strings.TrimSpace(string(r.Broker))))
	if r.Broker != BrokerRedis {
		r.Broker = BrokerMemory
	}
	r.EnrichCache = EnrichCache(strings.ToLower(strings.TrimSpace(string(r.EnrichCache))))
	if r.EnrichCache != EnrichCacheRedis {
		r.EnrichCache = EnrichCacheMemory
	}
	if r.ClientBuffer < 1 {
		r.ClientBuffer = 1
	}
	if r.TopicBuffer < 1 {
		r.TopicBuffer = 1
	}
	if r.PublishTimeout <= 0 {
		r.PublishTimeout = 2 * time.Second
	}
	if r.Heartbeat < time.Second {
		r.Heartbeat = time.Second
	}
	if r.WriteTimeout < time.Second {
		r.WriteTimeout = time.Second
	}
	if r.ChannelPrefix == "" {
		r.ChannelPrefix = "prospector:changes:"
	}
	if r.SnapshotLimit < 1 {
		r.SnapshotLimit = 1
	}
	if r.SnapshotLimit > 1000 {
		r.SnapshotLimit = 1000
	}
	if r.EnrichCacheTTL <= 0 {
		r.EnrichCacheTTL = 5 * time.Minute
	}
}
