package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_PrefilterDerivation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		pattern           string
		wantPrefilter     string
		requiresFullMatch bool
	}{
		{
			name:              "Should use substring only for wildcard/literal/wildcard",
			pattern:           ".*/test/.*",
			wantPrefilter:     "/TEST/",
			requiresFullMatch: false,
		},
		{
			name:              "Should keep several literal segments in one substring",
			pattern:           ".*/node_modules/Lib/.*",
			wantPrefilter:     "/NODE_MODULES/LIB/",
			requiresFullMatch: false,
		},
		{
			name:              "Should pick the longest literal run when a wildcard sits in the middle",
			pattern:           ".*/test/.*/stuff/.*",
			wantPrefilter:     "/STUFF/",
			requiresFullMatch: true,
		},
		{
			name:              "Should keep the first run on equal length",
			pattern:           ".*/abc/.*/xyz/.*",
			wantPrefilter:     "/ABC/",
			requiresFullMatch: true,
		},
		{
			name:              "Should treat a wildcard inside a segment as a middle wildcard",
			pattern:           ".*/test.*/stuff/.*",
			wantPrefilter:     "/STUFF/",
			requiresFullMatch: true,
		},
		{
			name:              "Should omit the leading separator when the run starts the pattern",
			pattern:           "src/generated/.*",
			wantPrefilter:     "SRC/GENERATED/",
			requiresFullMatch: true,
		},
		{
			name:              "Should omit the trailing separator when the run ends the pattern",
			pattern:           ".*/vendor",
			wantPrefilter:     "/VENDOR",
			requiresFullMatch: true,
		},
		{
			name:              "Should fall back to regexp only without literal segments",
			pattern:           `.*\.min\.js`,
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should drop a run that carries a quantifier",
			pattern:           ".*/a+b/.*",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should drop a run made optional by a quantified separator",
			pattern:           ".*/b/?c",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should drop the prefilter under top level alternation",
			pattern:           "a|.*/b/.*",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should drop a run that sits inside a group",
			pattern:           ".*/(x/b/y)?/.*",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should keep full matching when the literal is case sensitive",
			pattern:           ".*/(?-i:Test)/.*",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
		{
			name:              "Should need at least three segments for the substring shortcut",
			pattern:           ".*/.*",
			wantPrefilter:     "",
			requiresFullMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Compile(tt.pattern)
			require.NoError(t, err)

			got, ok := p.Prefilter()
			assert.Equal(t, tt.wantPrefilter, got)
			assert.Equal(t, tt.wantPrefilter != "", ok)
			assert.Equal(t, tt.requiresFullMatch, p.RequiresFullMatch())
			assert.Equal(t, tt.pattern, p.Source())

			// Invariant: skipping the regexp needs a substring to stand in for it.
			if !p.RequiresFullMatch() {
				assert.True(t, ok, "substring only patterns must carry a prefilter")
			}
		})
	}
}

func TestCompile_InvalidPatterns(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"", "(", "[a-", "a)(b", "a)|(b", `.*\`} {
		_, err := Compile(pattern)
		require.Error(t, err, "pattern %q", pattern)
		assert.ErrorIs(t, err, ErrInvalidPattern)
	}
}

func TestCompile_WhitespacePattern(t *testing.T) {
	t.Parallel()

	p, err := Compile("   ")
	require.NoError(t, err)
	assert.True(t, p.Matches("   "))
	assert.False(t, p.Matches("  "))
	assert.False(t, p.Matches("/src/a.go"))
}

func TestMustCompile_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustCompile("(") })
	assert.NotPanics(t, func() { MustCompile(".*") })
}

func TestCompiledPattern_Matches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{".*/test/.*", "blah/test/", true},
		{".*/test/.*", "blah/test/stuff", true},
		{".*/test/.*", "some/other/path", false},
		{".*/test/.*", "BLAH/TEST/stuff", true},
		{".*/test/.*/stuff/.*", "blah/test/", false},
		{".*/test/.*/stuff/.*", "blah/test/test/stuff/", true},
		{".*/test/.*/stuff/.*", "blah/test/some/stuff/path", true},
		{".*/test.*/stuff/.*", "blah/something/stuff", false},
		{".*/test.*/stuff/.*", "/test/stuff/", true},
		{".*/test.*/stuff/.*", "/testing/stuff/path", true},
		{`.*\.min\.js`, "/web/app.MIN.js", true},
		{`.*\.min\.js`, "/web/app.js", false},
		{"src/generated/.*", "src/generated/a.go", true},
		{"src/generated/.*", "lib/src/generated/a.go", false},
		{".*/b/?c", "/a/bc", true},
		{"a|.*/b/.*", "a", true},
		{".*/test/.*", "x/te\nst/y", false},
		{".*/test/.*", "x\n/test/\ny", true},
	}

	for _, tt := range tests {
		p := MustCompile(tt.pattern)
		assert.Equal(t, tt.want, p.Matches(tt.path), "pattern %q path %q", tt.pattern, tt.path)
		assert.Equal(t, p.FullMatch(tt.path), p.Matches(tt.path), "prefilter changed the answer for %q on %q", tt.pattern, tt.path)
	}
}

func TestCompiledPattern_MatchesFolded(t *testing.T) {
	t.Parallel()

	p := MustCompile(".*/build/.*/gen/.*")
	path := "/repo/Build/x/GEN/file"

	assert.True(t, p.MatchesFolded(path, Fold(path)))
	// A folded form without the prefilter rejects before the regexp runs.
	assert.False(t, p.MatchesFolded(path, "no-match"))
}
