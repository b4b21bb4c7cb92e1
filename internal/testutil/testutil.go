// Package testutil connects tests to real PostgreSQL and Redis instances.
// Tests that need them are skipped when the services are unreachable unless
// TEST_REQUIRE_DB, TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA is set.
package testutil

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/target/prospector/internal/migrate"
)

// TestingTB is the subset of testing.TB the helpers use.
type TestingTB interface {
	Helper()
	Cleanup(func())
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Skip(args ...any)
	Skipf(format string, args ...any)
	Logf(format string, args ...any)
}

// TestDBConfig holds configuration for the test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig returns the test database configuration.
// Defaults to port 55432 (local test DB from the docker-compose test profile).
// CI environments should set TEST_DB_PORT=5432 explicitly.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "prospector"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "prospector"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "prospector"),
	}
}

// DSN builds the connection URL for cfg.
func (cfg TestDBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SetupTestDB opens a pool against the test database, applies migrations and
// empties every table. The pool is closed when the test ends.
func SetupTestDB(t TestingTB) *pgxpool.Pool {
	t.Helper()
	return OpenTestDB(t, DefaultTestDBConfig().DSN())
}

// OpenTestDB connects to dsn, migrates and truncates it. Unreachable
// databases skip the test unless a database is required.
func OpenTestDB(t TestingTB, dsn string) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err == nil {
		err = pool.Ping(ctx)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		if requireDB() {
			t.Fatalf("test database not available: %v", err)
		}
		t.Skipf("test database not available: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Run(ctx, pool); err != nil {
		t.Fatal("failed to run migrations:", err)
	}
	CleanupTestDB(t, pool)
	return pool
}

// CleanupTestDB removes all rows from the application tables.
func CleanupTestDB(t TestingTB, pool *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const stmt = `TRUNCATE worker_jobs, contacts, site_analyses, prospects, workflow_runs, audiences`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		t.Fatalf("failed to clean up test database: %v", err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// GetTestRedisAddr returns the Redis address to test against and whether it answers.
// REDIS_ADDR wins; otherwise common compose addresses are probed, then the local test port.
func GetTestRedisAddr(t TestingTB) (string, bool) {
	t.Helper()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr, pingRedis(t, addr)
	}
	for _, candidate := range []string{"redis:6379", "localhost:6379"} {
		if pingRedis(t, candidate) {
			return candidate, true
		}
	}
	const local = "localhost:56379"
	return local, pingRedis(t, local)
}

func pingRedis(t TestingTB, addr string) bool {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Redis not available at %s: %v", addr, err)
		return false
	}
	return true
}

// selectTestRedisDB picks a Redis DB index so packages running in parallel do
// not flush each other's data. TEST_REDIS_DB overrides; otherwise a DB in
// [1..15] is reserved with a lock key in DB 0, falling back to DB 1.
func selectTestRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("Invalid TEST_REDIS_DB=%q, falling back to auto-select", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer func() {
		if err := meta.Close(); err != nil {
			t.Logf("warning: failed to close redis meta client: %v", err)
		}
	}()

	for i := 1; i <= 15; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lockKey := fmt.Sprintf("prospector:testutil:db_lock:%d", i)
		lockVal := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
		ok, err := meta.SetNX(ctx, lockKey, lockVal, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() { releaseRedisLock(t, addr, lockKey) })
		t.Logf("Using Redis DB=%d for tests at %s", i, addr)
		return i
	}

	t.Logf("Falling back to Redis DB=1 for tests at %s", addr)
	return 1
}

func releaseRedisLock(t TestingTB, addr, lockKey string) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Del(ctx, lockKey).Err(); err != nil {
		t.Logf("warning: failed to release redis db lock %s: %v", lockKey, err)
	}
	if err := c.Close(); err != nil {
		t.Logf("warning: failed to close redis cleanup client: %v", err)
	}
}

// SetupTestRedis returns a client on a freshly flushed test DB. The test is
// skipped when Redis is unavailable.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		if requireRedis() {
			t.Fatal("Redis not available for testing")
		}
		t.Skip("Redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: selectTestRedisDB(t, addr)})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis db: %v", err)
	}
	return client
}
