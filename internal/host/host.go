// Package host owns the engine currently serving exclusion queries.
//
// Settings changes never mutate an engine: the host builds a new one from the
// snapshot, swaps it in atomically and retires the old one after a grace
// period, so in-flight queries finish against a consistent rule list.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rafaeljc/indexgate/internal/observability"
	"github.com/rafaeljc/indexgate/internal/registry"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
	"github.com/rafaeljc/indexgate/internal/settings"
	"github.com/rafaeljc/indexgate/internal/validation"
)

// ErrNoEngine is returned before the first successful Apply.
var ErrNoEngine = errors.New("no exclusion engine loaded")

// Config tunes the host.
type Config struct {
	// RetireGrace delays closing a replaced engine. Zero closes it immediately.
	RetireGrace time.Duration

	// EngineOptions are passed to every engine built.
	EngineOptions []ruleengine.Option
}

// Host serves queries from the current engine and replaces it on settings changes.
type Host struct {
	logger   *slog.Logger
	registry *registry.Registry
	source   settings.Source
	cfg      Config

	current atomic.Pointer[ruleengine.Engine]

	// mu serializes settings changes and guards retiring.
	mu       sync.Mutex
	retiring map[*ruleengine.Engine]*time.Timer
	closed   bool
}

// New creates a host without an engine; call Reload or Apply before serving.
func New(logger *slog.Logger, reg *registry.Registry, source settings.Source, cfg Config) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertNotNil(reg, "registry")
	if source == nil {
		panic("host: settings source cannot be nil")
	}

	return &Host{
		logger:   logger,
		registry: reg,
		source:   source,
		cfg:      cfg,
		retiring: make(map[*ruleengine.Engine]*time.Timer),
	}
}

// Current returns the engine serving queries, or nil before the first Apply.
func (h *Host) Current() *ruleengine.Engine {
	return h.current.Load()
}

// Engine is Current with ErrNoEngine instead of nil.
func (h *Host) Engine() (*ruleengine.Engine, error) {
	e := h.current.Load()
	if e == nil {
		return nil, ErrNoEngine
	}
	return e, nil
}

// Persistent reports whether Update can write through the settings source.
func (h *Host) Persistent() bool {
	_, ok := h.source.(settings.Saver)
	return ok
}

// Registry returns the registry engines are tracked in.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Apply validates snap and makes it the serving configuration. Invalid
// settings are rejected with the current engine left in place. Applying
// settings equal to the current ones keeps the current engine.
func (h *Host) Apply(snap settings.Snapshot) (*ruleengine.Engine, error) {
	return h.change(context.Background(), snap, false)
}

// Update is Apply followed by persisting snap when the source is a
// settings.Saver. The swap happens only after the source accepted the
// snapshot. With a read-only source the change lives in memory until the
// next Reload.
func (h *Host) Update(ctx context.Context, snap settings.Snapshot) (*ruleengine.Engine, error) {
	return h.change(ctx, snap, true)
}

// Reload loads the source and applies its snapshot.
func (h *Host) Reload(ctx context.Context) (*ruleengine.Engine, error) {
	snap, err := h.source.Load(ctx)
	if err != nil {
		observability.SettingsReloads.WithLabelValues("load_failed").Inc()
		return nil, fmt.Errorf("failed to load settings from %s: %w", h.source.Name(), err)
	}

	e, err := h.Apply(snap)
	if err != nil {
		observability.SettingsReloads.WithLabelValues("invalid").Inc()
		return nil, err
	}

	observability.SettingsReloads.WithLabelValues("success").Inc()
	return e, nil
}

func (h *Host) change(ctx context.Context, snap settings.Snapshot, persist bool) (*ruleengine.Engine, error) {
	if err := snap.Validate(); err != nil {
		observability.FilterEngineBuilds.WithLabelValues("invalid").Inc()
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("host is closed")
	}

	next := snap.EngineSettings()
	old := h.current.Load()

	if persist {
		if saver, ok := h.source.(settings.Saver); ok {
			if err := saver.Save(ctx, snap); err != nil {
				return nil, fmt.Errorf("failed to persist settings: %w", err)
			}
		} else {
			h.logger.Warn("settings source is read-only, change applied in memory only",
				slog.String("source", h.source.Name()))
		}
	}

	if old != nil && sameSettings(old.Settings(), next) {
		h.logger.Debug("settings unchanged, keeping engine", slog.String("engine_id", old.ID()))
		return old, nil
	}

	e, err := ruleengine.New(next, h.cfg.EngineOptions...)
	if err != nil {
		observability.FilterEngineBuilds.WithLabelValues("invalid").Inc()
		return nil, err
	}
	observability.FilterEngineBuilds.WithLabelValues("success").Inc()

	h.registry.Register(e)
	h.current.Store(e)
	observability.FilterActiveVersion.Set(float64(e.Version()))

	attrs := []any{
		slog.String("engine_id", e.ID()),
		slog.Int("version", e.Version()),
		slog.Int("rules", len(next.Rules)),
		slog.Bool("todo_index_disabled", next.TodoIndexDisabled),
		slog.Bool("frontend_index_disabled", next.FrontendIndexDisabled),
	}
	if old != nil {
		attrs = append(attrs, slog.Int("previous_version", old.Version()))
		h.retire(old)
	}
	h.logger.Info("exclusion settings applied", attrs...)

	return e, nil
}

// retire unregisters old and closes it after the grace period. h.mu must be held.
func (h *Host) retire(old *ruleengine.Engine) {
	h.registry.Unregister(old.ID())

	if h.cfg.RetireGrace <= 0 {
		old.Close()
		return
	}

	h.retiring[old] = time.AfterFunc(h.cfg.RetireGrace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.retiring[old]; !ok {
			return
		}
		delete(h.retiring, old)
		old.Close()
	})
}

// Close releases the current engine and every engine still retiring.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for e, timer := range h.retiring {
		timer.Stop()
		e.Close()
		delete(h.retiring, e)
	}

	if e := h.current.Swap(nil); e != nil {
		h.registry.Unregister(e.ID())
		e.Close()
	}
}

// sameSettings reports whether a and b build engines answering identically.
// It agrees with Engine.Version: index name order and duplicates are ignored.
func sameSettings(a, b ruleengine.Settings) bool {
	if a.FrontendIndexDisabled != b.FrontendIndexDisabled || a.TodoIndexDisabled != b.TodoIndexDisabled {
		return false
	}
	return slices.EqualFunc(a.Rules, b.Rules, func(x, y ruleengine.ExclusionRule) bool {
		return x.Pattern == y.Pattern && x.Policy.Equivalent(y.Policy)
	})
}
