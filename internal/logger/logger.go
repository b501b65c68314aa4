// Package logger builds the structured logger shared by indexgate components.
// It wraps "log/slog": text output for humans in development, JSON for log
// pipelines, and the service identity attached to every record.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/rafaeljc/indexgate/internal/config"
)

// New returns a logger configured from cfg that writes to os.Stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger configured from cfg that writes to w.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
		// file:line is useful while developing and too costly on the query path in prod
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// Component returns a child logger tagged with the component name, e.g.
// "engine", "host", "queryapi".
func Component(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With(slog.String("component", name))
}

// ParseLevel converts a level name to slog.Level. Unknown names yield INFO.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	// UnmarshalText is case-insensitive
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
