package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"prospector"`
	Password string `env:"PASSWORD"                envDefault:"prospector"`
	Name     string `env:"NAME"                    envDefault:"prospector"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxConns        int32         `env:"POOL_MAX_CONNS"         envDefault:"25"`
	MinConns        int32         `env:"POOL_MIN_CONNS"         envDefault:"2"`
	MaxConnLifetime time.Duration `env:"POOL_MAX_CONN_LIFETIME" envDefault:"5m"`
}

// Sanitize applies guardrails to pool sizing.
func (d *DBConfig) Sanitize() {
	// LISTEN connections for the queue notifier and change stream hold a
	// pooled connection each, so keep headroom for request traffic.
	if d.MaxConns < 4 {
		d.MaxConns = 4
	}
	if d.MinConns < 0 {
		d.MinConns = 0
	}
	if d.MinConns > d.MaxConns {
		d.MinConns = d.MaxConns
	}
	if d.MaxConnLifetime < time.Minute {
		d.MaxConnLifetime = time.Minute
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// StoreDriver selects the entity store implementation.
type StoreDriver string

const (
	// StoreDriverPostgres persists entities and jobs in PostgreSQL.
	StoreDriverPostgres StoreDriver = "postgres"
	// StoreDriverMemory keeps everything in process. Intended for local demos and tests.
	StoreDriverMemory StoreDriver = "memory"
)

// StoreConfig selects the backing store.
type StoreConfig struct {
	Driver StoreDriver `env:"STORE_DRIVER" envDefault:"postgres"`
}

// Sanitize normalizes the driver name and falls back to postgres.
func (s *StoreConfig) Sanitize() {
	s.Driver = StoreDriver(strings.ToLower(strings.TrimSpace(string(s.Driver))))
	if s.Driver != StoreDriverMemory {
		s.Driver = StoreDriverPostgres
	}
}
