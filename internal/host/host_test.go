package host

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/indexgate/internal/observability"
	"github.com/rafaeljc/indexgate/internal/pattern"
	"github.com/rafaeljc/indexgate/internal/registry"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
	"github.com/rafaeljc/indexgate/internal/settings"
	"github.com/rafaeljc/indexgate/internal/testsupport"
)

func boolPtr(b bool) *bool { return &b }

func testSnapshot() settings.Snapshot {
	return settings.Snapshot{ExclusionRules: []settings.RuleSpec{
		{Pattern: ".*/test/.*", IndexNames: []string{"a"}, ExcludeIfNotIn: boolPtr(false)},
	}}
}

func newHost(t *testing.T, src settings.Source) (*Host, *testsupport.LogBuffer) {
	t.Helper()

	log, logs := testsupport.CaptureLogger()
	h := New(log, registry.New(log), src, Config{
		EngineOptions: []ruleengine.Option{ruleengine.WithLogger(log), ruleengine.WithCacheCapacity(256)},
	})
	t.Cleanup(h.Close)
	return h, logs
}

// excluded queries the serving engine; without one nothing is excluded.
func excluded(h *Host, path, index string) bool {
	e := h.Current()
	return e != nil && e.IsExcluded(path, index)
}

// readOnlySource cannot persist snapshots.
type readOnlySource struct{ snap settings.Snapshot }

func (r readOnlySource) Name() string { return "readonly" }

func (r readOnlySource) Load(context.Context) (settings.Snapshot, error) { return r.snap, nil }

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Load(context.Context) (settings.Snapshot, error) {
	return settings.Snapshot{}, errors.New("unreachable")
}

func TestHost_NoEngine(t *testing.T) {
	t.Parallel()

	h, _ := newHost(t, settings.NewStaticSource(settings.Snapshot{}))
	assert.Nil(t, h.Current())
	assert.False(t, excluded(h, "/x/test/y", "a"))

	_, err := h.Engine()
	assert.ErrorIs(t, err, ErrNoEngine)
}

// Not parallel: asserts the process-wide active version gauge.
func TestHost_Apply(t *testing.T) {
	h, logs := newHost(t, settings.NewStaticSource(settings.Snapshot{}))

	first, err := h.Apply(testSnapshot())
	require.NoError(t, err)
	assert.Same(t, first, h.Current())
	assert.True(t, excluded(h, "/x/test/y", "a"))
	assert.Equal(t, 1, h.Registry().Len())
	assert.Contains(t, logs.String(), "exclusion settings applied")

	t.Run("Should keep the engine for equal settings", func(t *testing.T) {
		same, err := h.Apply(testSnapshot())
		require.NoError(t, err)
		assert.Same(t, first, same)
	})

	t.Run("Should keep the engine when only index name order changes", func(t *testing.T) {
		wide := settings.Snapshot{ExclusionRules: []settings.RuleSpec{
			{Pattern: ".*/gen/.*", IndexNames: []string{"b", "a"}, ExcludeIfNotIn: boolPtr(false)},
		}}
		e, err := h.Apply(wide)
		require.NoError(t, err)
		assert.True(t, e.IsExcluded("/x/gen/y", "a"))

		reordered := settings.Snapshot{ExclusionRules: []settings.RuleSpec{
			{Pattern: ".*/gen/.*", IndexNames: []string{"a", "b", "a"}, ExcludeIfNotIn: boolPtr(false)},
		}}
		same, err := h.Apply(reordered)
		require.NoError(t, err)
		assert.Same(t, e, same)
		assert.Equal(t, 1, h.Registry().Len())

		first, err = h.Apply(testSnapshot())
		require.NoError(t, err)
	})

	t.Run("Should reject invalid settings and keep serving", func(t *testing.T) {
		_, err := h.Apply(settings.Snapshot{ExclusionRules: []settings.RuleSpec{{Pattern: "(("}}})
		require.Error(t, err)
		assert.ErrorIs(t, err, pattern.ErrInvalidPattern)
		assert.Same(t, first, h.Current())
	})

	t.Run("Should swap to a new engine on change", func(t *testing.T) {
		next, err := h.Apply(settings.Snapshot{TodoIndexDisabled: true})
		require.NoError(t, err)

		assert.NotSame(t, first, next)
		assert.NotEqual(t, first.Version(), next.Version())
		assert.Same(t, next, h.Current())
		assert.False(t, excluded(h, "/x/test/y", "a"))
		assert.True(t, excluded(h, "/x/y", ruleengine.TodoIndexName))

		reports := h.Registry().Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, next.ID(), reports[0].EngineID)
		assert.Equal(t, float64(next.Version()), testsupport.CounterValue(t, observability.FilterActiveVersion))
	})
}

func TestHost_RetireGrace(t *testing.T) {
	t.Parallel()

	log, _ := testsupport.CaptureLogger()
	h := New(log, registry.New(log), settings.NewStaticSource(settings.Snapshot{}), Config{RetireGrace: 20 * time.Millisecond})
	t.Cleanup(h.Close)

	old, err := h.Apply(testSnapshot())
	require.NoError(t, err)
	_, err = h.Apply(settings.Snapshot{})
	require.NoError(t, err)

	// The retired engine still answers during the grace period.
	assert.True(t, old.IsExcluded("/x/test/y", "a"))

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.retiring) == 0
	}, testsupport.EventuallyWait, testsupport.EventuallyTick)
}

func TestHost_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Should persist through a saving source", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "settings.json")
		src := settings.NewFileSource(path)
		h, _ := newHost(t, src)
		assert.True(t, h.Persistent())

		_, err := h.Update(ctx, testSnapshot())
		require.NoError(t, err)

		stored, err := src.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, testSnapshot(), stored)
		assert.True(t, excluded(h, "/x/test/y", "a"))
	})

	t.Run("Should apply in memory with a read-only source", func(t *testing.T) {
		t.Parallel()

		h, logs := newHost(t, readOnlySource{})
		assert.False(t, h.Persistent())

		_, err := h.Update(ctx, testSnapshot())
		require.NoError(t, err)
		assert.True(t, excluded(h, "/x/test/y", "a"))
		assert.Contains(t, logs.String(), "applied in memory only")
	})

	t.Run("Should not persist invalid settings", func(t *testing.T) {
		t.Parallel()

		src := settings.NewStaticSource(testSnapshot())
		h, _ := newHost(t, src)

		_, err := h.Update(ctx, settings.Snapshot{ExclusionRules: []settings.RuleSpec{{Pattern: ""}}})
		require.Error(t, err)

		stored, _ := src.Load(ctx)
		assert.Equal(t, testSnapshot(), stored)
	})
}

func TestHost_Reload(t *testing.T) {
	ctx := context.Background()

	t.Run("Should apply the source snapshot", func(t *testing.T) {
		h, _ := newHost(t, readOnlySource{snap: testSnapshot()})

		testsupport.AssertMetricDelta(t, "indexgate_settings_reloads_total", map[string]string{"status": "success"}, 1, func() {
			_, err := h.Reload(ctx)
			require.NoError(t, err)
		})
		assert.True(t, excluded(h, "/x/test/y", "a"))
	})

	t.Run("Should count load failures", func(t *testing.T) {
		h, _ := newHost(t, failingSource{})

		testsupport.AssertMetricDelta(t, "indexgate_settings_reloads_total", map[string]string{"status": "load_failed"}, 1, func() {
			_, err := h.Reload(ctx)
			assert.ErrorContains(t, err, "failing")
		})
	})

	t.Run("Should count invalid snapshots", func(t *testing.T) {
		h, _ := newHost(t, readOnlySource{snap: settings.Snapshot{ExclusionRules: []settings.RuleSpec{{Pattern: "a)|(b"}}}})

		testsupport.AssertMetricDelta(t, "indexgate_settings_reloads_total", map[string]string{"status": "invalid"}, 1, func() {
			_, err := h.Reload(ctx)
			assert.Error(t, err)
		})
	})
}

func TestHost_Close(t *testing.T) {
	t.Parallel()

	log, _ := testsupport.CaptureLogger()
	h := New(log, registry.New(log), settings.NewStaticSource(settings.Snapshot{}), Config{RetireGrace: time.Hour})

	_, err := h.Apply(testSnapshot())
	require.NoError(t, err)
	_, err = h.Apply(settings.Snapshot{})
	require.NoError(t, err)

	h.Close()
	h.Close()

	assert.Nil(t, h.Current())
	assert.Zero(t, h.Registry().Len())
	assert.Empty(t, h.retiring)

	_, err = h.Apply(testSnapshot())
	assert.Error(t, err)
}

func TestNew_PanicsWithoutCollaborators(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(nil, nil, settings.NewStaticSource(settings.Snapshot{}), Config{}) })
	assert.Panics(t, func() { New(nil, registry.New(nil), nil, Config{}) })
}
