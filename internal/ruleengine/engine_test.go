package ruleengine

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEngine builds an engine with a small cache and a captured logger.
func newEngine(t *testing.T, settings Settings) (*Engine, *bytes.Buffer) {
	t.Helper()

	var logBuffer bytes.Buffer
	e, err := New(settings,
		WithLogger(slog.New(slog.NewTextHandler(&logBuffer, nil))),
		WithCacheCapacity(1024),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, &logBuffer
}

func rule(pattern string, mode PolicyMode, names ...string) ExclusionRule {
	return ExclusionRule{Pattern: pattern, Policy: IndexNamePolicy{Names: names, Mode: mode}}
}

func TestEngine_IsExcluded(t *testing.T) {
	t.Parallel()

	type query struct {
		path  string
		index string
		want  bool
	}

	tests := []struct {
		name     string
		settings Settings
		queries  []query
	}{
		{
			name:     "Should exclude nothing when disabled",
			settings: Settings{},
			queries: []query{
				{path: "/any", index: TodoIndexName, want: false},
				{path: "/any", index: "js.index", want: false},
			},
		},
		{
			name: "Should exclude listed names under DenyOnly",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*", DenyOnly, "a", "b"),
			}},
			queries: []query{
				{path: "/test", index: "a", want: true},
				{path: "/test", index: "c", want: false},
			},
		},
		{
			name: "Should exclude unlisted names under AllowOnly",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*", AllowOnly, "a", "b"),
			}},
			queries: []query{
				{path: "/test", index: "c", want: true},
				{path: "/test", index: "a", want: false},
			},
		},
		{
			name: "Should match wildcard/literal/wildcard as a substring",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/test/.*", DenyOnly, "a"),
			}},
			queries: []query{
				{path: "blah/test/", index: "a", want: true},
				{path: "blah/test/stuff", index: "a", want: true},
				{path: "some/other/path", index: "a", want: false},
			},
		},
		{
			name: "Should run the full match with a wildcard in the middle",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/test/.*/stuff/.*", DenyOnly, "a"),
			}},
			queries: []query{
				{path: "blah/test/", index: "a", want: false},
				{path: "blah/test/test/stuff/", index: "a", want: true},
				{path: "blah/test/some/stuff/path", index: "a", want: true},
			},
		},
		{
			name: "Should run the full match with a wildcard inside a segment",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/test.*/stuff/.*", DenyOnly, "a"),
			}},
			queries: []query{
				{path: "blah/something/stuff", index: "a", want: false},
				{path: "/test/stuff/", index: "a", want: true},
				{path: "/testing/stuff/path", index: "a", want: true},
			},
		},
		{
			name:     "Should exclude the TODO index when toggled",
			settings: Settings{TodoIndexDisabled: true},
			queries: []query{
				{path: "/src/a.go", index: TodoIndexName, want: true},
				{path: "/src/a.go", index: "FilenameIndex", want: false},
			},
		},
		{
			name:     "Should exclude frontend indexes when toggled",
			settings: Settings{FrontendIndexDisabled: true},
			queries: []query{
				{path: "/web/a.js", index: "js.string.index", want: true},
				{path: "/web/a.css", index: "CssIndex", want: true},
				{path: "/web/a.html", index: "HtmlTagIdIndex", want: true},
				{path: "/web/a.html", index: "html5.custom.attributes.index", want: true},
				{path: "/web/a.ts", index: "angularjs.directives.index", want: true},
				{path: "/web/a.ts", index: "dom.elements", want: true},
				{path: "/web/a.css", index: "css.class.index", want: true},
				{path: "/web/a.js", index: "CssIndexer", want: false},
				{path: "/web/a.js", index: "javascript", want: false},
			},
		},
		{
			name: "Should let the first matching rule win",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/gen/.*", DenyOnly, "a"),
				rule(".*/gen/.*", AllowOnly, "a"),
			}},
			queries: []query{
				{path: "/x/gen/y", index: "a", want: true},
				{path: "/x/gen/y", index: "b", want: false},
			},
		},
		{
			name: "Should fall through to later rules when earlier ones do not match",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/vendor/.*", DenyOnly, "a"),
				rule(`.*\.min\.js`, AllowOnly, DefaultIndexName),
			}},
			queries: []query{
				{path: "/web/app.min.js", index: "a", want: true},
				{path: "/web/app.min.js", index: DefaultIndexName, want: false},
				{path: "/web/app.js", index: "a", want: false},
			},
		},
		{
			name: "Should match case-insensitively",
			settings: Settings{Rules: []ExclusionRule{
				rule(".*/Build/.*", DenyOnly, "a"),
			}},
			queries: []query{
				{path: "/repo/BUILD/out", index: "a", want: true},
				{path: "/repo/build/out", index: "a", want: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, _ := newEngine(t, tt.settings)
			for _, q := range tt.queries {
				assert.Equal(t, q.want, e.IsExcluded(q.path, q.index), "path %q index %q", q.path, q.index)
				// Idempotence: the cached answer is the computed answer.
				assert.Equal(t, q.want, e.IsExcluded(q.path, q.index), "second call for path %q index %q", q.path, q.index)
			}
		})
	}
}

func TestEngine_IsExcludedFor_ExplicitClassification(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Settings{TodoIndexDisabled: true, FrontendIndexDisabled: true})

	assert.True(t, e.IsExcludedFor("/a", "custom-todo", true, false))
	assert.True(t, e.IsExcludedFor("/a", "custom-web", false, true))
	assert.False(t, e.IsExcludedFor("/a", TodoIndexName, false, false))
}

func TestEngine_New_RejectsInvalidPattern(t *testing.T) {
	t.Parallel()

	e, err := New(Settings{Rules: []ExclusionRule{
		rule(".*/ok/.*", DenyOnly, "a"),
		rule("(", DenyOnly, "a"),
	}})
	require.Error(t, err)
	assert.Nil(t, e)
	assert.Contains(t, err.Error(), "exclusion rule 1")
}

func TestEngine_New_CopiesSettings(t *testing.T) {
	t.Parallel()

	names := []string{"a"}
	rules := []ExclusionRule{{Pattern: ".*", Policy: IndexNamePolicy{Names: names, Mode: DenyOnly}}}
	e, _ := newEngine(t, Settings{Rules: rules})

	names[0] = "b"
	rules[0].Pattern = "nothing"

	assert.True(t, e.IsExcluded("/x", "a"))
	assert.False(t, e.IsExcluded("/x", "b"))
	assert.Equal(t, ".*", e.Settings().Rules[0].Pattern)
}

func TestEngine_InvalidateCacheKeepsDecisions(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Settings{Rules: []ExclusionRule{rule(".*/test/.*", DenyOnly, "a")}})

	before := e.IsExcluded("blah/test/stuff", "a")
	e.InvalidateCache()
	after := e.IsExcluded("blah/test/stuff", "a")

	assert.True(t, before)
	assert.Equal(t, before, after)
}

func TestEngine_Counters(t *testing.T) {
	t.Parallel()

	t.Run("Should not count queries of a disabled engine", func(t *testing.T) {
		e, _ := newEngine(t, Settings{})
		e.IsExcluded("/a", "b")
		assert.Zero(t, e.Stats().Calls)
	})

	t.Run("Should count every evaluated query and reset", func(t *testing.T) {
		e, _ := newEngine(t, Settings{TodoIndexDisabled: true, Rules: []ExclusionRule{rule(".*", DenyOnly, "a")}})

		e.IsExcluded("/a", TodoIndexName)
		e.IsExcluded("/a", "a")
		e.IsExcluded("/a", "b")

		s := e.Stats()
		assert.Equal(t, int64(3), s.Calls)
		assert.GreaterOrEqual(t, s.ElapsedNanos, int64(0))
		assert.Equal(t, e.ID(), s.EngineID)
		assert.Equal(t, e.Version(), s.Version)

		e.ResetCounters()
		s = e.Stats()
		assert.Zero(t, s.Calls)
		assert.Zero(t, s.ElapsedNanos)
	})

	t.Run("Should log stats", func(t *testing.T) {
		e, logs := newEngine(t, Settings{TodoIndexDisabled: true})
		e.IsExcluded("/a", TodoIndexName)
		e.LogStats()
		assert.Contains(t, logs.String(), "index filter stats")
		assert.Contains(t, logs.String(), "calls=1")
	})
}

func TestEngine_FaultDegradesToIndexing(t *testing.T) {
	t.Parallel()

	e, logs := newEngine(t, Settings{Rules: []ExclusionRule{rule(".*", AllowOnly)}})

	// A rule without a matcher panics during resolution.
	e.rules = &RuleSet{rules: []compiledRule{{rule: rule(".*", AllowOnly)}}}

	assert.False(t, e.IsExcluded("/broken", "a"))
	assert.Contains(t, logs.String(), "failed to resolve index exclusion")
	assert.Contains(t, logs.String(), "/broken")

	// Nothing was cached: the fault repeats instead of being remembered.
	logs.Reset()
	assert.False(t, e.IsExcluded("/broken", "a"))
	assert.Contains(t, logs.String(), "failed to resolve index exclusion")
}

func TestEngine_AffectsIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		index    string
		want     bool
	}{
		{name: "disabled", settings: Settings{}, index: TodoIndexName, want: false},
		{name: "rules affect every index", settings: Settings{Rules: []ExclusionRule{rule(".*", DenyOnly, "a")}}, index: "z", want: true},
		{name: "todo toggle on todo index", settings: Settings{TodoIndexDisabled: true}, index: TodoIndexName, want: true},
		{name: "todo toggle on other index", settings: Settings{TodoIndexDisabled: true}, index: "js.x", want: false},
		{name: "frontend toggle on frontend index", settings: Settings{FrontendIndexDisabled: true}, index: "js.x", want: true},
		{name: "frontend toggle on other index", settings: Settings{FrontendIndexDisabled: true}, index: TodoIndexName, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, _ := newEngine(t, tt.settings)
			assert.Equal(t, tt.want, e.AffectsIndex(tt.index))
		})
	}
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Settings{Rules: []ExclusionRule{
		rule(".*/test/.*", DenyOnly, "a"),
		rule(".*/gen/.*/out/.*", AllowOnly, "b"),
	}})

	const workers = 8
	indexes := []string{"a", "b", "c"}

	pathFor := func(worker, i int) string {
		switch i % 3 {
		case 0:
			return fmt.Sprintf("/p%d/test/f%d", worker, i%20)
		case 1:
			return fmt.Sprintf("/p%d/gen/x/out/f%d", worker, i%20)
		default:
			return fmt.Sprintf("/p%d/src/f%d", worker, i%20)
		}
	}

	// Reference answers come from the uncached resolution, computed up front
	// so the workers only compare.
	type query struct{ path, index string }
	want := make(map[query]bool)
	for w := range workers {
		for i := range 60 {
			path := pathFor(w, i)
			for _, index := range indexes {
				excluded := false
				if ref := e.rules.FirstMatch(path); ref != NoRule {
					var err error
					excluded, err = e.rules.excludes(ref, index)
					require.NoError(t, err)
				}
				want[query{path, index}] = excluded
			}
		}
	}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range 500 {
				path := pathFor(worker, i)
				for _, index := range indexes {
					if got := e.IsExcluded(path, index); got != want[query{path, index}] {
						t.Errorf("path %q index %q: got %v", path, index, got)
						return
					}
				}
				if i%100 == 0 {
					e.InvalidateCache()
				}
			}
		}(w)
	}
	wg.Wait()
}
