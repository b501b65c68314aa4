package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/indexgate/internal/settings"
)

// RunSessionResets starts a session immediately and then every interval:
// all registered engines log their stats, drop cached decisions and reset
// counters. It blocks until ctx is cancelled. A non-positive interval only
// performs the initial reset.
func (h *Host) RunSessionResets(ctx context.Context, interval time.Duration) error {
	h.logger.Info("starting session reset loop", slog.String("interval", interval.String()))

	h.registry.ResetAll()

	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("session reset loop stopping...")
			return nil
		case <-ticker.C:
			h.registry.ResetAll()
		}
	}
}

// Watch reloads the settings each time the source reports a change. Sources
// that cannot watch make Watch return immediately. A failed reload is logged
// and the current engine keeps serving.
func (h *Host) Watch(ctx context.Context) error {
	watcher, ok := h.source.(settings.Watcher)
	if !ok {
		h.logger.Info("settings source cannot be watched", slog.String("source", h.source.Name()))
		return nil
	}

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				h.logger.Warn("settings watch ended", slog.String("source", h.source.Name()))
				return nil
			}
			if _, err := h.Reload(ctx); err != nil {
				h.logger.Error("settings reload failed, keeping current engine",
					slog.String("source", h.source.Name()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
