package httpx

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status  string            `json:"status"`
	Failing map[string]string `json:"failing,omitempty"`
}

// healthHandler returns 200 when every check passes, 503 otherwise.
// HEAD requests get the status without a body.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				if resp.Failing == nil {
					resp.Failing = make(map[string]string)
				}
				resp.Failing[name] = err.Error()
			}
		}

		code := http.StatusOK
		if len(resp.Failing) > 0 {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			return
		}
		WriteJSON(w, code, resp)
	}
}
