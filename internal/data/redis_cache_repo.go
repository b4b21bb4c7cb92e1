package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCachePrefix namespaces every key the cache writes.
const DefaultCachePrefix = "prospector:cache:"

// RedisCacheRepo implements core.CacheRepository on Redis so that every
// replica shares enrichment lookups.
type RedisCacheRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCacheRepo creates a new RedisCacheRepo. An empty prefix selects DefaultCachePrefix.
func NewRedisCacheRepo(client redis.UniversalClient, prefix string) *RedisCacheRepo {
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	return &RedisCacheRepo{client: client, prefix: prefix}
}

func (r *RedisCacheRepo) key(k string) (string, error) {
	if k == "" {
		return "", errors.New("key cannot be empty")
	}
	return r.prefix + k, nil
}

// Set stores value under key. A zero ttl never expires.
func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := r.key(key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns nil without error on a miss.
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := r.key(key)
	if err != nil {
		return nil, err
	}
	b, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

// Delete removes key and reports whether it existed.
func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	n, err := r.client.Del(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Health pings Redis.
func (r *RedisCacheRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
