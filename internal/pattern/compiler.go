package pattern

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
)

// CompiledPattern is the matcher built from one path pattern.
// It is immutable and safe for concurrent use.
type CompiledPattern struct {
	source string
	full   *regexp.Regexp

	// prefilter is a folded substring every matching path contains.
	// Empty when the pattern has no usable literal run.
	prefilter string

	// requiresFullMatch is false only when the prefilter alone is
	// equivalent to the full pattern. Invariant: !requiresFullMatch
	// implies prefilter != "".
	requiresFullMatch bool
}

// Compile turns a textual path pattern into a CompiledPattern.
// The empty pattern is rejected: it would only match the empty path.
// Errors wrap ErrInvalidPattern.
func Compile(pattern string) (*CompiledPattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}

	// Parse the pattern on its own first: a stray ")" would otherwise
	// close the wrapper group below and change the meaning silently.
	tree, err := syntax.Parse(pattern, parseFlags)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}

	// (?is) gives case-insensitive matching where "." also crosses
	// newlines; the anchors make it a whole-path match.
	full, err := regexp.Compile(`^(?is:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}

	prefilter, substringOnly := guard(tree, planSegments(pattern))

	return &CompiledPattern{
		source:            pattern,
		full:              full,
		prefilter:         prefilter,
		requiresFullMatch: !substringOnly,
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *CompiledPattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the pattern text as written by the user.
func (p *CompiledPattern) Source() string { return p.source }

// Prefilter returns the folded substring used to reject paths early.
func (p *CompiledPattern) Prefilter() (string, bool) {
	return p.prefilter, p.prefilter != ""
}

// RequiresFullMatch reports whether a regexp match runs after the prefilter.
func (p *CompiledPattern) RequiresFullMatch() bool { return p.requiresFullMatch }

// Matches reports whether path matches the pattern.
func (p *CompiledPattern) Matches(path string) bool {
	if p.prefilter == "" {
		return p.full.MatchString(path)
	}
	return p.MatchesFolded(path, Fold(path))
}

// MatchesFolded is Matches for callers that already hold Fold(path), so a
// path is folded once for a whole rule list.
func (p *CompiledPattern) MatchesFolded(path, folded string) bool {
	if p.prefilter != "" && !strings.Contains(folded, p.prefilter) {
		return false
	}
	if !p.requiresFullMatch {
		return true
	}
	return p.full.MatchString(path)
}

// FullMatch evaluates the regexp alone, bypassing the prefilter.
func (p *CompiledPattern) FullMatch(path string) bool {
	return p.full.MatchString(path)
}

func (p *CompiledPattern) String() string {
	return p.source
}
