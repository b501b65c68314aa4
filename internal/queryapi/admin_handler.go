package queryapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/rafaeljc/indexgate/internal/logger"
	"github.com/rafaeljc/indexgate/internal/settings"
)

// maxSettingsBytes bounds a settings document.
const maxSettingsBytes = 1 << 20

// readSnapshot parses the body as a settings snapshot, or writes 413/400 and
// false. Unknown fields are rejected, unlike the other endpoints.
func readSnapshot(w http.ResponseWriter, r *http.Request) (settings.Snapshot, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingsBytes))
	if err != nil {
		writeBodyError(w, r, err, "Invalid settings payload")
		return settings.Snapshot{}, false
	}

	snap, err := settings.Parse(data)
	if err != nil {
		writeBodyError(w, r, err, "Invalid settings payload")
		return settings.Snapshot{}, false
	}
	return snap, true
}

// writeSettingsError maps a settings error to 400 (invalid) or 500.
func writeSettingsError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationResponse(verr))
		return
	}

	logger.FromContext(r.Context()).Error("failed to apply settings", slog.String("error", err.Error()))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to apply settings"})
}

// handleGetSettings processes GET /api/v1/settings.
func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SettingsResponse{
		Settings:  settings.FromEngineSettings(e.Settings()),
		Version:   e.Version(),
		EngineID:  e.ID(),
		Persisted: a.host.Persistent(),
	})
}

// handleValidateSettings processes POST /api/v1/settings/validate.
// Nothing is applied.
func (a *API) handleValidateSettings(w http.ResponseWriter, r *http.Request) {
	snap, ok := readSnapshot(w, r)
	if !ok {
		return
	}

	if err := snap.Validate(); err != nil {
		writeSettingsError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "valid"})
}

// handlePutSettings processes PUT /api/v1/settings: validate, persist when the
// source can, then swap in a new engine.
func (a *API) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	snap, ok := readSnapshot(w, r)
	if !ok {
		return
	}

	e, err := a.host.Update(r.Context(), snap)
	if err != nil {
		writeSettingsError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("settings updated through API",
		slog.String("engine_id", e.ID()),
		slog.Int("version", e.Version()),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SettingsResponse{
		Settings:  settings.FromEngineSettings(e.Settings()),
		Version:   e.Version(),
		EngineID:  e.ID(),
		Persisted: a.host.Persistent(),
	})
}

// handleInvalidateCache processes POST /api/v1/cache/invalidate.
func (a *API) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	e := a.engineOrUnavailable(w, r)
	if e == nil {
		return
	}

	e.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionReset processes POST /api/v1/session/reset. The response holds
// the stats accumulated before the reset.
func (a *API) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatsResponse{Engines: a.host.Registry().ResetAll()})
}
