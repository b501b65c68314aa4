package logger

import (
	"context"
	"log/slog"
)

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

// WithContext returns a copy of ctx carrying logger. The query API middleware
// uses it to hand a request-scoped logger to handlers.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default(). It never
// returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
