// Package settings loads, validates and persists the user-editable exclusion
// settings. A Snapshot is the serialized form; engines are built from the
// ruleengine.Settings it converts to.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rafaeljc/indexgate/internal/pattern"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
)

// RuleSpec is one exclusion rule as stored and exchanged over the API.
type RuleSpec struct {
	Pattern string `json:"pattern" validate:"required"`

	// IndexNames defaults to [FilenameIndex] when omitted.
	IndexNames []string `json:"index_names,omitempty" validate:"omitempty,dive,required"`

	// ExcludeIfNotIn selects AllowOnly (true, the default) or DenyOnly.
	ExcludeIfNotIn *bool `json:"exclude_if_not_in,omitempty"`
}

// Snapshot is the complete, serialized exclusion configuration.
type Snapshot struct {
	FrontendIndexDisabled bool       `json:"frontend_index_disabled"`
	TodoIndexDisabled     bool       `json:"todo_index_disabled"`
	ExclusionRules        []RuleSpec `json:"exclusion_rules" validate:"dive"`
}

// Parse decodes a JSON snapshot. Unknown fields are rejected so a typo in a
// field name cannot silently drop a setting.
func Parse(data []byte) (Snapshot, error) {
	var s Snapshot
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// Marshal encodes the snapshot as indented JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Policy resolves the defaults of a rule's index-name policy.
func (r RuleSpec) Policy() ruleengine.IndexNamePolicy {
	policy := ruleengine.DefaultPolicy()
	if r.IndexNames != nil {
		policy.Names = slices.Clone(r.IndexNames)
	}
	if r.ExcludeIfNotIn != nil && !*r.ExcludeIfNotIn {
		policy.Mode = ruleengine.DenyOnly
	}
	return policy
}

// EngineSettings converts the snapshot into the immutable engine input.
func (s Snapshot) EngineSettings() ruleengine.Settings {
	out := ruleengine.Settings{
		FrontendIndexDisabled: s.FrontendIndexDisabled,
		TodoIndexDisabled:     s.TodoIndexDisabled,
	}
	if len(s.ExclusionRules) > 0 {
		out.Rules = make([]ruleengine.ExclusionRule, len(s.ExclusionRules))
		for i, r := range s.ExclusionRules {
			out.Rules[i] = ruleengine.ExclusionRule{Pattern: r.Pattern, Policy: r.Policy()}
		}
	}
	return out
}

// FromEngineSettings is the inverse of EngineSettings. Policies are always
// written out in full.
func FromEngineSettings(in ruleengine.Settings) Snapshot {
	out := Snapshot{
		FrontendIndexDisabled: in.FrontendIndexDisabled,
		TodoIndexDisabled:     in.TodoIndexDisabled,
		ExclusionRules:        make([]RuleSpec, len(in.Rules)),
	}
	for i, r := range in.Rules {
		excludeIfNotIn := r.Policy.Mode == ruleengine.AllowOnly
		out.ExclusionRules[i] = RuleSpec{
			Pattern:        r.Pattern,
			IndexNames:     slices.Clone(r.Policy.Names),
			ExcludeIfNotIn: &excludeIfNotIn,
		}
	}
	return out
}

// Issue describes one problem found in a snapshot.
type Issue struct {
	Rule    int    `json:"rule"`
	Field   string `json:"field"`
	Pattern string `json:"pattern,omitempty"`
	Message string `json:"message"`
}

// ValidationError aggregates every issue found by Validate.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = fmt.Sprintf("rule %d %s: %s", is.Rule, is.Field, is.Message)
	}
	return "invalid settings: " + strings.Join(msgs, "; ")
}

// Unwrap exposes pattern.ErrInvalidPattern when any pattern failed to compile.
func (e *ValidationError) Unwrap() error {
	for _, is := range e.Issues {
		if is.Field == "pattern" && is.Pattern != "" {
			return pattern.ErrInvalidPattern
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks the snapshot without building an engine. All issues are
// collected; a nil result means ruleengine.New will accept the snapshot.
func (s Snapshot) Validate() error {
	var issues []Issue

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate settings: %w", err)
		}
		for _, fe := range fieldErrs {
			issues = append(issues, issueFromField(fe))
		}
	}

	for i, r := range s.ExclusionRules {
		if strings.TrimSpace(r.Pattern) == "" {
			// Reported by the struct validation or below as blank.
			if r.Pattern != "" {
				issues = append(issues, Issue{Rule: i, Field: "pattern", Message: "pattern is blank"})
			}
			continue
		}
		if _, err := pattern.Compile(r.Pattern); err != nil {
			issues = append(issues, Issue{Rule: i, Field: "pattern", Pattern: r.Pattern, Message: err.Error()})
		}
	}

	if len(issues) == 0 {
		return nil
	}
	slices.SortStableFunc(issues, func(a, b Issue) int { return a.Rule - b.Rule })
	return &ValidationError{Issues: issues}
}

// issueFromField maps a validator error on ExclusionRules[i].Field to an Issue.
func issueFromField(fe validator.FieldError) Issue {
	is := Issue{Rule: -1, Field: strings.ToLower(fe.Field()), Message: fmt.Sprintf("failed on '%s'", fe.Tag())}

	// Namespace looks like Snapshot.ExclusionRules[3].IndexNames[0]
	ns := fe.StructNamespace()
	if start := strings.Index(ns, "ExclusionRules["); start >= 0 {
		rest := ns[start+len("ExclusionRules["):]
		if end := strings.IndexByte(rest, ']'); end > 0 {
			_, _ = fmt.Sscanf(rest[:end], "%d", &is.Rule)
		}
	}

	switch {
	case strings.HasPrefix(fe.Field(), "IndexNames"):
		is.Field = "index_names"
		is.Message = "index names must not be empty strings"
	case fe.Field() == "Pattern":
		is.Field = "pattern"
		is.Message = "pattern is required"
	}
	return is
}
