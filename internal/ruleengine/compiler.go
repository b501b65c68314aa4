package ruleengine

import (
	"fmt"
	"slices"

	"github.com/rafaeljc/indexgate/internal/pattern"
)

// compiledRule is the evaluation-ready form of an ExclusionRule.
type compiledRule struct {
	rule    ExclusionRule
	matcher *pattern.CompiledPattern
	names   map[string]struct{}
}

// RuleSet is an ordered, immutable list of compiled exclusion rules.
// It is safe for concurrent use.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles rules in order. The first invalid pattern aborts the
// whole set; the error wraps pattern.ErrInvalidPattern.
func NewRuleSet(rules []ExclusionRule) (*RuleSet, error) {
	set := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("failed to compile exclusion rule %d: %w", i, err)
		}
		set.rules = append(set.rules, cr)
	}
	return set, nil
}

// compileRule copies the rule so later edits of the caller's slices cannot
// leak into a live engine.
func compileRule(r ExclusionRule) (compiledRule, error) {
	matcher, err := pattern.Compile(r.Pattern)
	if err != nil {
		return compiledRule{}, err
	}

	names := make(map[string]struct{}, len(r.Policy.Names))
	for _, n := range r.Policy.Names {
		names[n] = struct{}{}
	}

	r.Policy.Names = slices.Clone(r.Policy.Names)
	return compiledRule{rule: r, matcher: matcher, names: names}, nil
}

// FirstMatch returns the first rule whose pattern matches path, or NoRule.
// Later rules are not consulted once one matches.
func (s *RuleSet) FirstMatch(path string) RuleRef {
	if len(s.rules) == 0 {
		return NoRule
	}

	folded := pattern.Fold(path)
	for i := range s.rules {
		if s.rules[i].matcher.MatchesFolded(path, folded) {
			return RuleRef(i)
		}
	}
	return NoRule
}

// Rule returns the rule behind ref.
func (s *RuleSet) Rule(ref RuleRef) (ExclusionRule, bool) {
	if ref < 0 || int(ref) >= len(s.rules) {
		return ExclusionRule{}, false
	}
	return s.rules[ref].rule, true
}

// Len returns the number of rules.
func (s *RuleSet) Len() int { return len(s.rules) }
