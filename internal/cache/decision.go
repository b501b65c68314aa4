// Package cache memoizes exclusion decisions per path.
//
// The DecisionCache sits on the hot path of every indexing query. It uses the
// contention-free S3-FIFO cache from 'otter' and stores, for each path, the
// position of the first exclusion rule that matched it (or NoEntry).
package cache

import (
	"errors"
	"fmt"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/indexgate/internal/observability"
)

// NoEntry is the stored value for a path no rule applies to. Negative results
// are cached too, so repeated misses never rescan the rules.
const NoEntry = -1

// ErrComputation indicates that resolving a path failed internally.
// Nothing is cached for that path; the next lookup computes again.
var ErrComputation = errors.New("decision computation failed")

// Resolver computes the decision for a path on a cache miss.
// It must be deterministic for the lifetime of the cache.
type Resolver func(path string) int

// DecisionCache maps a path to the first matching rule position.
// It is safe for concurrent use.
type DecisionCache struct {
	store otter.Cache[string, int]
}

// NewDecisionCache initializes the cache.
// capacity: max number of paths kept (hard cap to prevent OOM). Entries have
// no TTL; an evicted path is simply resolved again.
func NewDecisionCache(capacity int) (*DecisionCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("decision cache capacity must be positive, got %d", capacity)
	}

	store, err := otter.MustBuilder[string, int](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build decision cache: %w", err)
	}

	return &DecisionCache{store: store}, nil
}

// Resolve returns the cached decision for path, computing and storing it on a
// miss. Concurrent misses for the same path may both compute; the Resolver is
// deterministic, so both store the same value.
//
// A panic inside the Resolver is recovered and returned as ErrComputation.
func (c *DecisionCache) Resolve(path string, resolve Resolver) (int, error) {
	if ref, ok := c.store.Get(path); ok {
		observability.DecisionCacheHits.Inc()
		return ref, nil
	}
	observability.DecisionCacheMisses.Inc()

	ref, err := compute(path, resolve)
	if err != nil {
		return NoEntry, err
	}

	if !c.store.Set(path, ref) {
		observability.DecisionCacheRejected.Inc()
	}
	return ref, nil
}

func compute(path string, resolve Resolver) (ref int, err error) {
	defer func() {
		if r := recover(); r != nil {
			ref, err = NoEntry, fmt.Errorf("%w for path %q: %v", ErrComputation, path, r)
		}
	}()
	return resolve(path), nil
}

// InvalidateAll drops every cached decision. It is safe to call while lookups
// are in flight: a racing lookup either sees the old value or recomputes it.
func (c *DecisionCache) InvalidateAll() {
	c.store.DeleteByFunc(func(string, int) bool { return true })
	observability.DecisionCacheInvalidations.Inc()
}

// Size returns the number of cached paths.
func (c *DecisionCache) Size() int {
	return c.store.Size()
}

// Close gracefully shuts down the cache and its background goroutines.
// The cache must not be used afterwards.
func (c *DecisionCache) Close() {
	c.store.Close()
}
