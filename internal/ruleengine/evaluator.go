package ruleengine

import (
	"fmt"
	"strings"
)

// excludes applies the policy of the rule behind ref to indexName.
func (s *RuleSet) excludes(ref RuleRef, indexName string) (bool, error) {
	if ref < 0 || int(ref) >= len(s.rules) {
		return false, fmt.Errorf("rule reference %d out of range (rules: %d)", ref, len(s.rules))
	}

	cr := &s.rules[ref]
	_, listed := cr.names[indexName]

	switch cr.rule.Policy.Mode {
	case AllowOnly:
		return !listed, nil
	case DenyOnly:
		return listed, nil
	default:
		return false, fmt.Errorf("unknown policy mode %d", cr.rule.Policy.Mode)
	}
}

// frontendPrefixes and frontendNames identify indexes fed by web languages.
var (
	frontendPrefixes = []string{"js.", "angularjs.", "css.", "html5.", "dom."}
	frontendNames    = map[string]struct{}{
		"CssIndex":       {},
		"HtmlTagIdIndex": {},
	}
)

// IsFrontendIndex reports whether indexName belongs to the frontend group.
func IsFrontendIndex(indexName string) bool {
	if _, ok := frontendNames[indexName]; ok {
		return true
	}
	for _, p := range frontendPrefixes {
		if strings.HasPrefix(indexName, p) {
			return true
		}
	}
	return false
}

// IsTodoIndex reports whether indexName is the TODO index.
func IsTodoIndex(indexName string) bool {
	return indexName == TodoIndexName
}
