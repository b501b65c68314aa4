package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/indexgate/internal/cache"
	"github.com/rafaeljc/indexgate/internal/testsupport"
)

func TestDecisionCache_Metrics(t *testing.T) {
	c, err := cache.NewDecisionCache(64)
	require.NoError(t, err)
	defer c.Close()

	resolver := func(string) int { return 0 }

	t.Run("misses", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "indexgate_decision_cache_misses_total", nil, 1, func() {
			_, err := c.Resolve("/metrics/miss", resolver)
			assert.NoError(t, err)
		})
	})

	t.Run("hits", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "indexgate_decision_cache_hits_total", nil, 1, func() {
			_, err := c.Resolve("/metrics/miss", resolver)
			assert.NoError(t, err)
		})
	})

	t.Run("invalidations", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "indexgate_decision_cache_invalidations_total", nil, 1, func() {
			c.InvalidateAll()
		})
	})
}
