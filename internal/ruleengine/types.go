// Package ruleengine decides whether an indexing operation must be skipped for
// a file. It combines two global toggles with an ordered list of exclusion
// rules, each pairing a path pattern with an index-name policy.
//
// Rules are compiled once per Engine. A settings change builds a new Engine,
// so compiled rules and cached decisions always describe the same rule list.
package ruleengine

import "slices"

const (
	// DefaultIndexName is the index a rule keeps when the user did not list any.
	DefaultIndexName = "FilenameIndex"

	// TodoIndexName identifies the TODO-comment index.
	TodoIndexName = "TodoIndex"
)

// PolicyMode selects how an IndexNamePolicy treats its name list.
type PolicyMode int

const (
	// AllowOnly excludes indexing unless the index name is listed.
	AllowOnly PolicyMode = iota
	// DenyOnly excludes indexing only for listed index names.
	DenyOnly
)

func (m PolicyMode) String() string {
	switch m {
	case AllowOnly:
		return "allow_only"
	case DenyOnly:
		return "deny_only"
	default:
		return "unknown"
	}
}

// IndexNamePolicy says which indexes a matching rule applies to.
type IndexNamePolicy struct {
	Names []string
	Mode  PolicyMode
}

// CanonicalNames returns the policy names sorted and without duplicates.
// Lookups treat the names as a set, so this is the form to compare and hash.
func (p IndexNamePolicy) CanonicalNames() []string {
	names := slices.Clone(p.Names)
	slices.Sort(names)
	return slices.Compact(names)
}

// Equivalent reports whether p and o apply to the same indexes.
func (p IndexNamePolicy) Equivalent(o IndexNamePolicy) bool {
	return p.Mode == o.Mode && slices.Equal(p.CanonicalNames(), o.CanonicalNames())
}

// DefaultPolicy keeps only the file-name index for matching paths.
func DefaultPolicy() IndexNamePolicy {
	return IndexNamePolicy{
		Names: []string{DefaultIndexName},
		Mode:  AllowOnly,
	}
}

// ExclusionRule pairs a path pattern with an index-name policy.
// Two rules are the same rule when pattern and policy are equal.
type ExclusionRule struct {
	Pattern string
	Policy  IndexNamePolicy
}

// Settings is the immutable configuration an Engine is built from.
type Settings struct {
	FrontendIndexDisabled bool
	TodoIndexDisabled     bool

	// Rules are evaluated in order; the first matching rule wins.
	Rules []ExclusionRule
}

// RuleRef points into the ordered rule list of a RuleSet.
type RuleRef int

// NoRule is the RuleRef of a path no rule applies to.
const NoRule RuleRef = -1

// Stats are the counters reported for one Engine.
type Stats struct {
	EngineID     string `json:"engine_id"`
	Version      int    `json:"version"`
	Calls        int64  `json:"calls"`
	ElapsedNanos int64  `json:"elapsed_nanos"`
	CachedPaths  int    `json:"cached_paths"`
}
