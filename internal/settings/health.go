package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RedisHealthChecker reports whether the settings redis answers pings.
// It implements observability.Checker.
type RedisHealthChecker struct {
	client *redis.Client
}

// NewRedisHealthChecker creates a checker for client.
func NewRedisHealthChecker(client *redis.Client) *RedisHealthChecker {
	return &RedisHealthChecker{client: client}
}

func (h *RedisHealthChecker) Name() string { return "redis" }

func (h *RedisHealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return h.client.Ping(ctx).Err()
}

// PostgresHealthChecker reports whether the settings database answers pings.
type PostgresHealthChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresHealthChecker creates a checker for pool.
func NewPostgresHealthChecker(pool *pgxpool.Pool) *PostgresHealthChecker {
	return &PostgresHealthChecker{pool: pool}
}

func (h *PostgresHealthChecker) Name() string { return "postgres" }

func (h *PostgresHealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	return h.pool.Ping(ctx)
}

// FileHealthChecker reports whether the settings file directory is usable.
type FileHealthChecker struct {
	path string
}

// NewFileHealthChecker creates a checker for the settings file at path.
func NewFileHealthChecker(path string) *FileHealthChecker {
	return &FileHealthChecker{path: path}
}

func (h *FileHealthChecker) Name() string { return "settings_file" }

func (h *FileHealthChecker) Check(_ context.Context) error {
	dir := filepath.Dir(h.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("settings directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("settings directory %s is not a directory", dir)
	}
	return nil
}
