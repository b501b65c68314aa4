package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/indexgate/internal/validation"
)

const (
	// DefaultPostgresKey names the settings row.
	DefaultPostgresKey = "default"
	// DefaultPostgresChannel is the LISTEN/NOTIFY channel announcing saves.
	DefaultPostgresChannel = "indexgate_settings_changed"
)

const (
	selectSettingsSQL = `SELECT snapshot FROM indexgate_settings WHERE key = $1`

	// The upsert and the notification share one statement, so listeners are
	// only told about committed snapshots.
	saveSettingsSQL = `
		WITH saved AS (
			INSERT INTO indexgate_settings (key, snapshot, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE
				SET snapshot = EXCLUDED.snapshot, updated_at = now()
			RETURNING key
		)
		SELECT pg_notify($3, key) FROM saved
	`
)

// PostgresDB is the part of *pgxpool.Pool the source queries through.
type PostgresDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// listenConn is a connection held for the lifetime of a Watch.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

type pooledListenConn struct {
	conn *pgxpool.Conn
}

func (p pooledListenConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p pooledListenConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return p.conn.Conn().WaitForNotification(ctx)
}

func (p pooledListenConn) Release() { p.conn.Release() }

// PostgresSource keeps the snapshot as JSONB in the indexgate_settings table
// (see migrations/) and announces every Save with NOTIFY, so all instances
// sharing the database reload.
type PostgresSource struct {
	db      PostgresDB
	acquire func(ctx context.Context) (listenConn, error)
	key     string
	channel string
	logger  *slog.Logger
}

// NewPostgresSource creates a source on pool. Empty key or channel fall back
// to the defaults.
func NewPostgresSource(pool *pgxpool.Pool, key, channel string, logger *slog.Logger) *PostgresSource {
	validation.AssertNotNil(pool, "postgres pool")

	s := newPostgresSource(pool, key, channel, logger)
	s.acquire = func(ctx context.Context) (listenConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return pooledListenConn{conn: conn}, nil
	}
	return s
}

func newPostgresSource(db PostgresDB, key, channel string, logger *slog.Logger) *PostgresSource {
	if key == "" {
		key = DefaultPostgresKey
	}
	if channel == "" {
		channel = DefaultPostgresChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSource{db: db, key: key, channel: channel, logger: logger}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.key }

// Load returns the stored snapshot, or an empty one when the row is absent.
func (s *PostgresSource) Load(ctx context.Context) (Snapshot, error) {
	var data []byte
	err := s.db.QueryRow(ctx, selectSettingsSQL, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read settings from postgres: %w", err)
	}

	snap, err := Parse(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings row %q: %w", s.key, err)
	}
	return snap, nil
}

// Save upserts the snapshot and notifies the channel in one statement.
func (s *PostgresSource) Save(ctx context.Context, snap Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if _, err := s.db.Exec(ctx, saveSettingsSQL, s.key, data, s.channel); err != nil {
		return fmt.Errorf("failed to save settings to postgres: %w", err)
	}
	return nil
}

// Watch holds one pooled connection in LISTEN until ctx is done. Bursts of
// notifications coalesce into a single pending signal.
func (s *PostgresSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", s.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer s.release(conn)

		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("settings notifications stopped",
						slog.String("channel", s.channel),
						slog.String("error", err.Error()),
					)
				}
				return
			}

			s.logger.Debug("settings change notified", slog.String("key", n.Payload))
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	s.logger.Info("watching settings changes", slog.String("channel", s.channel))
	return out, nil
}

// release drops the subscription before the connection goes back to the pool.
// A connection closed by cancellation is discarded by the pool anyway.
func (s *PostgresSource) release(conn listenConn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _ = conn.Exec(ctx, "UNLISTEN *")
	conn.Release()
}
