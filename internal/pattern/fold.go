package pattern

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fold maps every rune of s to the smallest rune of its simple case-folding
// orbit. Two strings are equal under Go's case-insensitive regexp matching
// exactly when their folded forms are equal, so the prefilter and the path are
// both compared in this form.
//
// ASCII input without lowercase letters is returned as is (no allocation).
func Fold(s string) string {
	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || ('a' <= c && c <= 'z') {
			break
		}
	}
	if i == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for _, r := range s[i:] {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'a' <= r && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}

	lowest := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < lowest {
			lowest = f
		}
	}
	return lowest
}
