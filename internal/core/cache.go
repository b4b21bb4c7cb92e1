package core

import (
	"context"
	"time"
)

// CacheRepository is the byte cache behind live-event enrichment. It holds a
// run's location and audience name keyed by run id so prospect events can be
// joined without a query per event. Redis backs it when several replicas
// serve streams; the memory store supplies a TTL map otherwise.
type CacheRepository interface {
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
}
