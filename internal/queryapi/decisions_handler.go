package queryapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/indexgate/internal/logger"
	"github.com/rafaeljc/indexgate/internal/ruleengine"
)

// engineOrUnavailable returns the current engine, or writes 503 and nil.
func (a *API) engineOrUnavailable(w http.ResponseWriter, r *http.Request) *ruleengine.Engine {
	e, err := a.host.Engine()
	if err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NO_ENGINE", Message: "Exclusion settings are not loaded yet"})
		return nil
	}
	return e
}

// maxDecisionBytes bounds a single decision request body.
const maxDecisionBytes = 64 << 10

// decodeOrBadRequest decodes at most limit bytes of JSON body into v. On
// failure it writes 413 or 400 and returns false.
func decodeOrBadRequest(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, limit), v); err != nil {
		writeBodyError(w, r, err, "Invalid JSON payload")
		return false
	}
	return true
}

// writeBodyError answers 413 when the body went over its limit, 400 otherwise.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error, message string) {
	log := logger.FromContext(r.Context())

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Warn("request body too large", slog.Int64("limit", tooLarge.Limit))
		render.Status(r, http.StatusRequestEntityTooLarge)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_PAYLOAD_TOO_LARGE",
			Message: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}

	log.Warn("invalid json payload", slog.String("error", err.Error()))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: message + ": " + err.Error()})
}

// handleDecision processes POST /api/v1/decisions.
func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !decodeOrBadRequest(w, r, &req, maxDecisionBytes) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, DecisionResponse{
		Excluded: e.IsExcluded(req.Path, req.Index),
		Version:  e.Version(),
	})
}

// handleBatchDecision processes POST /api/v1/decisions/batch.
// The engine is resolved once so a concurrent settings change cannot split
// the batch across two rule lists.
func (a *API) handleBatchDecision(w http.ResponseWriter, r *http.Request) {
	var req BatchDecisionRequest
	if !decodeOrBadRequest(w, r, &req, a.maxBatchBytes) {
		return
	}
	if errResp := req.Validate(a.maxBatchPaths); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	isTodo := ruleengine.IsTodoIndex(req.Index)
	isFrontend := ruleengine.IsFrontendIndex(req.Index)

	resp := BatchDecisionResponse{Results: make([]PathDecision, len(req.Paths)), Version: e.Version()}
	for i, p := range req.Paths {
		resp.Results[i] = PathDecision{Path: p, Excluded: e.IsExcludedFor(p, req.Index, isTodo, isFrontend)}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleIndex processes GET /api/v1/indexes/{name}.
func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, IndexResponse{
		Index:    name,
		Affected: e.AffectsIndex(name),
		Todo:     ruleengine.IsTodoIndex(name),
		Frontend: ruleengine.IsFrontendIndex(name),
	})
}

// handleVersion processes GET /api/v1/version.
func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VersionResponse{Version: e.Version(), EngineID: e.ID(), Enabled: e.Enabled()})
}

// handleStats processes GET /api/v1/stats.
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatsResponse{Engines: a.host.Registry().Reports()})
}
