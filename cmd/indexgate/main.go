// Package main runs the indexgate service.
//
// It is the composition root: it loads configuration, wires the settings
// source, the engine host and the HTTP servers, and handles the lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/indexgate/internal/config"
	"github.com/rafaeljc/indexgate/internal/host"
	"github.com/rafaeljc/indexgate/internal/logger"
	"github.com/rafaeljc/indexgate/internal/observability"
	"github.com/rafaeljc/indexgate/internal/queryapi"
	"github.com/rafaeljc/indexgate/internal/registry"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
	"github.com/rafaeljc/indexgate/internal/settings"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLog := logger.New(&cfg.App)
	slog.SetDefault(appLog)
	cfg.LogConfig(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, appLog)

	// -------------------------------------------------------------------------
	// 2. Settings Source
	// -------------------------------------------------------------------------
	source, checkers, cleanup, err := buildSource(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer cleanup()

	// -------------------------------------------------------------------------
	// 3. Engine Host
	// -------------------------------------------------------------------------
	engineLog := logger.Component(appLog, "engine")
	reg := registry.New(logger.Component(appLog, "registry"))
	h := host.New(logger.Component(appLog, "host"), reg, source, host.Config{
		RetireGrace: cfg.Filter.RetireGrace,
		EngineOptions: []ruleengine.Option{
			ruleengine.WithLogger(engineLog),
			ruleengine.WithCacheCapacity(cfg.Filter.CacheCapacity),
		},
	})
	defer h.Close()

	if _, err := h.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load initial settings: %w", err)
	}

	checkers = append(checkers, observability.CheckerFunc{
		ComponentName: "engine",
		Fn: func(context.Context) error {
			_, err := h.Engine()
			return err
		},
	})

	// -------------------------------------------------------------------------
	// 4. Background Loops
	// -------------------------------------------------------------------------
	go func() {
		_ = h.RunSessionResets(ctx, cfg.Filter.SessionResetInterval)
	}()

	if cfg.Settings.Watch {
		go func() {
			if err := h.Watch(ctx); err != nil {
				appLog.Error("settings watch failed", slog.String("error", err.Error()))
			}
		}()
	}

	// SIGHUP reloads sources that cannot push changes, such as a file.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if _, err := h.Reload(ctx); err != nil {
					appLog.Error("settings reload failed, keeping current engine", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// -------------------------------------------------------------------------
	// 5. HTTP Servers
	// -------------------------------------------------------------------------
	obs := observability.NewServer(logger.Component(appLog, "observability"), &cfg.Observability, checkers...)
	obs.Start()

	api := queryapi.NewAPIWithOptions(h, queryapi.Options{
		APIKeyHash:    cfg.Server.Query.APIKeyHash,
		SkipAuth:      !cfg.Server.Query.AuthRequired(cfg.App.Environment),
		MaxBatchPaths: cfg.Server.Query.MaxBatchPaths,
		MaxBatchBytes: cfg.Server.Query.MaxBatchBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Query.Address(),
		Handler:           api.Router,
		ReadTimeout:       cfg.Server.Query.ReadTimeout,
		WriteTimeout:      cfg.Server.Query.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.Query.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.Query.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.Query.MaxHeaderBytes,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		appLog.Info("starting query api", slog.String("addr", srv.Addr))
		var err error
		if cfg.Server.Query.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.Query.TLSCert, cfg.Server.Query.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("query api failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 6. Graceful Shutdown
	// -------------------------------------------------------------------------
	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		appLog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("query api shutdown failed", slog.String("error", err.Error()))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		appLog.Error("observability shutdown failed", slog.String("error", err.Error()))
	}

	// Final stats line for the last session.
	reg.ResetAll()

	if serveErr != nil {
		return serveErr
	}
	appLog.Info("service exited successfully")
	return nil
}

// buildSource creates the configured settings source with its readiness
// checkers and a cleanup function.
func buildSource(ctx context.Context, cfg *config.Config, log *slog.Logger) (settings.Source, []observability.Checker, func(), error) {
	noop := func() {}

	switch cfg.Settings.Source {
	case config.SettingsSourceRedis:
		client, err := settings.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, noop, err
		}
		src := settings.NewRedisSource(client, cfg.Settings.RedisKey, cfg.Settings.RedisChannel, logger.Component(log, "settings"))
		cleanup := func() { _ = client.Close() }
		return src, []observability.Checker{settings.NewRedisHealthChecker(client)}, cleanup, nil

	case config.SettingsSourcePostgres:
		pool, err := settings.NewPostgresPool(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, noop, err
		}
		src := settings.NewPostgresSource(pool, cfg.Settings.PostgresKey, cfg.Settings.PostgresChannel, logger.Component(log, "settings"))
		return src, []observability.Checker{settings.NewPostgresHealthChecker(pool)}, pool.Close, nil

	case config.SettingsSourceStatic:
		return settings.NewStaticSource(settings.Snapshot{
			FrontendIndexDisabled: cfg.Settings.FrontendIndexDisabled,
			TodoIndexDisabled:     cfg.Settings.TodoIndexDisabled,
		}), nil, noop, nil

	default:
		return settings.NewFileSource(cfg.Settings.FilePath),
			[]observability.Checker{settings.NewFileHealthChecker(cfg.Settings.FilePath)}, noop, nil
	}
}
