// Package registry tracks the live exclusion engines of a process and drives
// their session activity: on session start every engine logs its stats,
// forgets its cached decisions and zeroes its counters.
package registry

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/rafaeljc/indexgate/internal/observability"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
)

// Member is an engine as seen by the registry.
type Member interface {
	ID() string
	Stats() ruleengine.Stats
	LogStats()
	InvalidateCache()
	ResetCounters()
}

// Registry is a set of engines keyed by ID, iterated in registration order.
// It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	members []Member
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds m. Registering the same ID twice is a no-op.
func (r *Registry) Register(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(m.ID()) >= 0 {
		return
	}
	r.members = append(r.members, m)
	r.logger.Debug("engine registered", slog.String("engine_id", m.ID()), slog.Int("engines", len(r.members)))
}

// Unregister removes the engine with id and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	r.logger.Debug("engine unregistered", slog.String("engine_id", id), slog.Int("engines", len(r.members)))
	return true
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Reports returns the current stats of every engine.
func (r *Registry) Reports() []ruleengine.Stats {
	members := r.snapshot()
	out := make([]ruleengine.Stats, len(members))
	for i, m := range members {
		out[i] = m.Stats()
	}
	return out
}

// ResetAll starts a new session for every engine: log stats, invalidate the
// decision cache, reset counters. It returns the stats taken before the reset.
func (r *Registry) ResetAll() []ruleengine.Stats {
	members := r.snapshot()
	out := make([]ruleengine.Stats, len(members))
	for i, m := range members {
		out[i] = m.Stats()
		m.LogStats()
		m.InvalidateCache()
		m.ResetCounters()
	}

	observability.SessionResets.Inc()
	r.logger.Info("session reset", slog.Int("engines", len(members)))
	return out
}

// snapshot copies the member list so callbacks run without the lock held.
func (r *Registry) snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members)
}

func (r *Registry) indexOf(id string) int {
	return slices.IndexFunc(r.members, func(m Member) bool { return m.ID() == id })
}
