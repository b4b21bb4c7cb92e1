package data

import (
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// clampLimit applies the list default and cap shared by every list query.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// validUUID reports whether id can be bound to a UUID column. Malformed ids
// are treated as "not found" instead of surfacing a driver cast error.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
