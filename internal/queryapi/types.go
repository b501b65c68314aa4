package queryapi

import (
	"fmt"

	"github.com/rafaeljc/indexgate/internal/ruleengine"
	"github.com/rafaeljc/indexgate/internal/settings"
)

// DecisionRequest asks whether indexing Index for Path must be skipped.
type DecisionRequest struct {
	Path  string `json:"path"`
	Index string `json:"index"`
}

// Validate checks the request fields.
func (r *DecisionRequest) Validate() *ErrorResponse {
	var details []ErrorDetail
	if r.Path == "" {
		details = append(details, ErrorDetail{Field: "path", Issue: "path is required"})
	}
	if r.Index == "" {
		details = append(details, ErrorDetail{Field: "index", Issue: "index is required"})
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Invalid decision request", Details: details}
	}
	return nil
}

// DecisionResponse carries the answer and the version of the engine that gave it.
type DecisionResponse struct {
	Excluded bool `json:"excluded"`
	Version  int  `json:"version"`
}

// BatchDecisionRequest asks for one index over many paths.
type BatchDecisionRequest struct {
	Paths []string `json:"paths"`
	Index string   `json:"index"`
}

// Validate checks the request against the batch limit.
func (r *BatchDecisionRequest) Validate(maxPaths int) *ErrorResponse {
	var details []ErrorDetail
	switch {
	case len(r.Paths) == 0:
		details = append(details, ErrorDetail{Field: "paths", Issue: "at least one path is required"})
	case len(r.Paths) > maxPaths:
		details = append(details, ErrorDetail{Field: "paths", Issue: fmt.Sprintf("at most %d paths per request", maxPaths)})
	}
	for i, p := range r.Paths {
		if p == "" {
			details = append(details, ErrorDetail{Field: fmt.Sprintf("paths[%d]", i), Issue: "path is required"})
		}
	}
	if r.Index == "" {
		details = append(details, ErrorDetail{Field: "index", Issue: "index is required"})
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Invalid batch decision request", Details: details}
	}
	return nil
}

// PathDecision is one entry of a batch response, in request order.
type PathDecision struct {
	Path     string `json:"path"`
	Excluded bool   `json:"excluded"`
}

// BatchDecisionResponse answers a BatchDecisionRequest.
// Every result comes from the same engine.
type BatchDecisionResponse struct {
	Results []PathDecision `json:"results"`
	Version int            `json:"version"`
}

// IndexResponse describes how the engine treats an index name.
type IndexResponse struct {
	Index    string `json:"index"`
	Affected bool   `json:"affected"`
	Todo     bool   `json:"todo"`
	Frontend bool   `json:"frontend"`
}

// VersionResponse identifies the engine currently serving queries.
type VersionResponse struct {
	Version  int    `json:"version"`
	EngineID string `json:"engine_id"`
	Enabled  bool   `json:"enabled"`
}

// StatsResponse lists the counters of every registered engine.
type StatsResponse struct {
	Engines []ruleengine.Stats `json:"engines"`
}

// SettingsResponse is returned after settings were applied.
type SettingsResponse struct {
	Settings  settings.Snapshot `json:"settings"`
	Version   int               `json:"version"`
	EngineID  string            `json:"engine_id"`
	Persisted bool              `json:"persisted"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details lists per-field problems.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about a specific field failure.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// validationResponse maps settings issues to per-rule error details.
func validationResponse(verr *settings.ValidationError) ErrorResponse {
	details := make([]ErrorDetail, len(verr.Issues))
	for i, is := range verr.Issues {
		field := is.Field
		if is.Rule >= 0 {
			field = fmt.Sprintf("exclusion_rules[%d].%s", is.Rule, is.Field)
		}
		details[i] = ErrorDetail{Field: field, Issue: is.Message}
	}
	return ErrorResponse{Code: "ERR_INVALID_SETTINGS", Message: "Settings failed validation", Details: details}
}
