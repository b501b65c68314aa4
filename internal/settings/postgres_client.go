package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/indexgate/internal/config"
	"github.com/rafaeljc/indexgate/internal/logger"
)

// NewPostgresPool connects to the database holding the settings row and pings
// it once within cfg.ConnectTimeout. The caller owns the pool.
func NewPostgresPool(ctx context.Context, cfg *config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	// A Watch pins one connection; nothing else is latency sensitive, so
	// connections are only opened on demand.
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	initCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.FromContext(ctx).Info("postgres connected",
		slog.String("database", poolCfg.ConnConfig.Database),
		slog.Int("max_conns", cfg.MaxConns),
	)
	return pool, nil
}
