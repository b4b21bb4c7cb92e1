package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode names a long-running component the server binary can host.
type ServiceMode string

const (
	// ServiceModeHTTP serves the operator, worker and stream endpoints.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper requeues lapsed leases and purges old dead jobs.
	ServiceModeReaper ServiceMode = "reaper"
)

var serviceModes = []ServiceMode{ServiceModeHTTP, ServiceModeReaper}

// ValidServiceModes returns the known modes in start-up order.
func ValidServiceModes() []ServiceMode {
	return slices.Clone(serviceModes)
}

// ParseServices turns SERVICES (for example "http,reaper") into a set.
// Blank entries are skipped and duplicates collapse; unknown names fail.
func ParseServices(raw string) (map[ServiceMode]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("SERVICES must name at least one service")
	}

	enabled := make(map[ServiceMode]bool, len(serviceModes))
	for name := range strings.SplitSeq(raw, ",") {
		mode := ServiceMode(strings.ToLower(strings.TrimSpace(name)))
		if mode == "" {
			continue
		}
		if !slices.Contains(serviceModes, mode) {
			return nil, fmt.Errorf("unknown service %q (valid: %s)", name, joinModes(serviceModes))
		}
		enabled[mode] = true
	}
	if len(enabled) == 0 {
		return nil, errors.New("SERVICES must name at least one service")
	}
	return enabled, nil
}

func joinModes(modes []ServiceMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// ReaperConfig tunes queue housekeeping.
type ReaperConfig struct {
	Interval      time.Duration `env:"REAPER_INTERVAL"         envDefault:"1m"`
	DeadJobMaxAge time.Duration `env:"REAPER_DEAD_JOB_MAX_AGE" envDefault:"168h"` // dead jobs kept for inspection
	BatchSize     int           `env:"REAPER_BATCH_SIZE"       envDefault:"1000"`
}

// Sanitize clamps the interval to >= 10s, the retention to >= 1h and the
// batch size to [1, 10000].
func (r *ReaperConfig) Sanitize() {
	r.Interval = max(r.Interval, 10*time.Second)
	r.DeadJobMaxAge = max(r.DeadJobMaxAge, time.Hour)
	r.BatchSize = min(max(r.BatchSize, 1), 10000)
}
