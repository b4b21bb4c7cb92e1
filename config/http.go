package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT"  envDefault:"120s"`

	// MaxLongPollWait caps the wait query parameter accepted by the job reserve endpoint.
	MaxLongPollWait time.Duration `env:"HTTP_MAX_LONG_POLL_WAIT" envDefault:"25s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 120 * time.Second
	}
	// A long poll must finish before the server's write deadline fires.
	if h.MaxLongPollWait <= 0 || h.MaxLongPollWait >= h.WriteTimeout {
		h.MaxLongPollWait = h.WriteTimeout - 5*time.Second
	}
	if h.MaxLongPollWait < time.Second {
		h.MaxLongPollWait = time.Second
	}
}
