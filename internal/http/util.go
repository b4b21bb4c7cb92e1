package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/target/prospector/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// ParseLimit parses the limit query parameter and clamps it to [1, maxLimit].
func ParseLimit(r *http.Request, defLimit, maxLimit int) int {
	if maxLimit < 1 {
		maxLimit = 1
	}
	lim := parseIntQuery(r, "limit", defLimit)
	return min(max(lim, 1), maxLimit)
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	off := max(parseIntQuery(r, "offset", 0), 0)
	return ParseLimit(r, defLimit, maxLimit), off
}

// parseDurationQuery reads a duration given either as whole seconds ("30")
// or as a Go duration ("1m30s"). Missing values yield zero.
func parseDurationQuery(r *http.Request, key string) (time.Duration, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, apperrors.ValidationField(key, key+" must be non-negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, apperrors.ValidationField(key, fmt.Sprintf("%s must be seconds or a duration like 30s", key))
	}
	return d, nil
}
