// Package config holds the environment-driven settings for the prospector
// binaries. Each group lives in its own file and clamps itself in Sanitize.
package config

// AppConfig composes every configuration group. It is filled by
// caarlos0/env; call Sanitize afterwards.
type AppConfig struct {
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Store    StoreConfig

	HTTP HTTPConfig

	// Services is a comma-separated list of ServiceMode names.
	Services string `env:"SERVICES" envDefault:"http"`

	Dispatch DispatchConfig
	Queue    QueueConfig
	Realtime RealtimeConfig
	Reaper   ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize applies every group's guardrails.
func (c *AppConfig) Sanitize() {
	for _, s := range []interface{ Sanitize() }{
		&c.HTTP,
		&c.Postgres,
		&c.Store,
		&c.Dispatch,
		&c.Queue,
		&c.Realtime,
		&c.Reaper,
		&c.Observability,
	} {
		s.Sanitize()
	}
}

// GetEnabledServices parses Services.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// ServiceEnabled reports whether mode is listed in Services. An unparsable
// list enables nothing.
func (c *AppConfig) ServiceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}

// UsesRedis reports whether any enabled component needs a Redis connection.
func (c *AppConfig) UsesRedis() bool {
	return c.Realtime.Broker == BrokerRedis || c.Realtime.EnrichCache == EnrichCacheRedis
}
