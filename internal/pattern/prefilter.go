package pattern

import (
	"regexp/syntax"
	"strings"
)

// anyWildcard is the token that matches any prefix or suffix of a path.
const anyWildcard = ".*"

// literalBreakers are the characters that disqualify a segment from the
// substring fast path.
const literalBreakers = `.*(\`

// parseFlags mirrors the "(?is:...)" wrapper used for the full match.
const parseFlags = syntax.Perl | syntax.FoldCase | syntax.DotNL

// segmentPlan is the result of walking a pattern segment by segment.
type segmentPlan struct {
	// candidate is the longest run of literal segments, with the separators
	// it would have inside a matching path.
	candidate string
	// substringOnly reports that the pattern has the ".*/literal/.*" shape.
	substringOnly bool
}

// planSegments derives the prefilter candidate from the textual pattern.
func planSegments(pattern string) segmentPlan {
	parts := strings.Split(pattern, "/")
	last := len(parts) - 1

	var (
		best             string
		found            bool
		runStart         = -1
		wildcardInMiddle bool
	)

	closeRun := func(end int) {
		if runStart < 0 {
			return
		}
		s := strings.Join(parts[runStart:end+1], "/")
		if runStart != 0 {
			s = "/" + s
		}
		if end != last {
			s += "/"
		}
		if !found || len(s) > len(best) {
			best, found = s, true
		}
		runStart = -1
	}

	for i, part := range parts {
		if !strings.ContainsAny(part, literalBreakers) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		closeRun(i - 1)
		if i != 0 && i != last {
			wildcardInMiddle = true
		}
	}
	closeRun(last)

	return segmentPlan{
		candidate: best,
		substringOnly: len(parts) >= 3 && !wildcardInMiddle &&
			parts[0] == anyWildcard && parts[last] == anyWildcard,
	}
}

// guard checks a segment plan against the parsed pattern. The textual walk
// knows nothing about quantifiers, alternation or escapes, so the candidate is
// only trusted when every match is forced to contain it.
//
// It returns the folded prefilter ("" when none survives) and whether the
// substring check alone decides the match.
func guard(re *syntax.Regexp, plan segmentPlan) (string, bool) {
	if plan.candidate == "" {
		return "", false
	}

	folded := Fold(plan.candidate)
	required := requiredLiterals(re)

	sound := false
	for _, lit := range required {
		if strings.Contains(lit, folded) {
			sound = true
			break
		}
	}
	if !sound {
		return "", false
	}

	return folded, plan.substringOnly && isAnyLiteralAny(re, folded)
}

// requiredLiterals returns the folded literals that appear at the top level
// of the expression. A full match has to contain each of them.
func requiredLiterals(re *syntax.Regexp) []string {
	switch re.Op {
	case syntax.OpLiteral:
		return []string{Fold(string(re.Rune))}
	case syntax.OpCapture:
		return requiredLiterals(re.Sub[0])
	case syntax.OpConcat:
		var out []string
		for _, sub := range re.Sub {
			if sub.Op == syntax.OpLiteral {
				out = append(out, Fold(string(sub.Rune)))
			}
		}
		return out
	default:
		return nil
	}
}

// isAnyLiteralAny reports whether re is exactly ".*<literal>.*" with a
// case-insensitive literal equal to folded.
func isAnyLiteralAny(re *syntax.Regexp, folded string) bool {
	if re.Op != syntax.OpConcat || len(re.Sub) != 3 {
		return false
	}
	head, lit, tail := re.Sub[0], re.Sub[1], re.Sub[2]
	if !isAnyStar(head) || !isAnyStar(tail) {
		return false
	}
	if lit.Op != syntax.OpLiteral || lit.Flags&syntax.FoldCase == 0 {
		return false
	}
	return Fold(string(lit.Rune)) == folded
}

func isAnyStar(re *syntax.Regexp) bool {
	return re.Op == syntax.OpStar && re.Sub[0].Op == syntax.OpAnyChar
}
