package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/testutil"
)

func TestRedisCacheRepo_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client, "")
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "run:1", []byte(`{"location":"Durban"}`), 5*time.Minute))

		got, err := repo.Get(ctx, "run:1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"location":"Durban"}`, string(got))

		ttl := client.TTL(ctx, DefaultCachePrefix+"run:1").Val()
		assert.True(t, ttl > 0 && ttl <= 5*time.Minute)
	})

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := repo.Get(ctx, "run:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "run:2", []byte("x"), time.Minute))

		deleted, err := repo.Delete(ctx, "run:2")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "run:2")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_EmptyKey(t *testing.T) {
	// Validation fails before any command is sent, so no server is needed.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	repo := NewRedisCacheRepo(client, "test:")
	ctx := context.Background()

	err := repo.Set(ctx, "", []byte("v"), time.Minute)
	require.ErrorContains(t, err, "key cannot be empty")

	_, err = repo.Get(ctx, "")
	require.ErrorContains(t, err, "key cannot be empty")

	_, err = repo.Delete(ctx, "")
	require.ErrorContains(t, err, "key cannot be empty")
}
