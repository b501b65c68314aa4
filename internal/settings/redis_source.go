package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey holds the JSON snapshot.
	DefaultRedisKey = "indexgate:settings"
	// DefaultRedisChannel carries change notifications.
	DefaultRedisChannel = "indexgate:settings:changed"
)

// RedisSource stores the snapshot as JSON under a key and announces every
// Save on a pub/sub channel, so all instances sharing the redis reload.
type RedisSource struct {
	client  *redis.Client
	key     string
	channel string
	logger  *slog.Logger
}

// NewRedisSource creates a source on client. Empty key or channel fall back
// to the defaults.
func NewRedisSource(client *redis.Client, key, channel string, logger *slog.Logger) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSource{client: client, key: key, channel: channel, logger: logger}
}

func (r *RedisSource) Name() string { return "redis:" + r.key }

// Load returns the stored snapshot, or an empty one when the key is absent.
func (r *RedisSource) Load(ctx context.Context) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get settings from redis: %w", err)
	}
	return Parse(data)
}

// Save stores the snapshot and publishes a change notification in one
// MULTI/EXEC transaction.
func (r *RedisSource) Save(ctx context.Context, s Snapshot) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Publish(ctx, r.channel, r.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save settings to redis: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. Bursts of notifications coalesce
// into a single pending signal.
func (r *RedisSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, r.channel)

	// Wait for the subscription confirmation so no Save is missed after return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					r.logger.Warn("settings subscription closed", slog.String("channel", r.channel))
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	r.logger.Info("watching settings changes", slog.String("channel", r.channel))
	return out, nil
}
