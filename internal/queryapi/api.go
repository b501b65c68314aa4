// Package queryapi serves exclusion decisions over HTTP to indexers running
// outside the process, together with the administrative operations on the
// live engine (settings, cache, session).
package queryapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/indexgate/internal/host"
	"github.com/rafaeljc/indexgate/internal/validation"
)

const (
	// DefaultMaxBatchPaths bounds a batch request when Options leave it unset.
	DefaultMaxBatchPaths = 10000

	// DefaultMaxBatchBytes bounds a batch request body when Options leave it unset.
	DefaultMaxBatchBytes = 8 << 20
)

// API holds the router and its dependencies.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	host *host.Host

	// apiKeyHash is the SHA-256 hex digest of the key guarding admin routes.
	apiKeyHash string

	// skipAuth disables the admin key check (tests and local development only).
	skipAuth bool

	maxBatchPaths int
	maxBatchBytes int64
}

// Options configures NewAPIWithOptions.
type Options struct {
	APIKeyHash    string
	SkipAuth      bool
	MaxBatchPaths int
	MaxBatchBytes int64
}

// NewAPI creates an API with admin authentication enabled.
// Panics if apiKeyHash is empty.
func NewAPI(h *host.Host, apiKeyHash string) *API {
	return NewAPIWithOptions(h, Options{APIKeyHash: apiKeyHash})
}

// NewAPIWithOptions creates an API with explicit options.
//
// Panics if h is nil, or if APIKeyHash is empty while SkipAuth is false.
func NewAPIWithOptions(h *host.Host, opts Options) *API {
	validation.AssertNotNil(h, "host")
	if !opts.SkipAuth && opts.APIKeyHash == "" {
		panic("queryapi: apiKeyHash cannot be empty when authentication is enabled")
	}
	if opts.MaxBatchPaths <= 0 {
		opts.MaxBatchPaths = DefaultMaxBatchPaths
	}
	if opts.MaxBatchBytes <= 0 {
		opts.MaxBatchBytes = DefaultMaxBatchBytes
	}

	api := &API{
		Router:        chi.NewRouter(),
		host:          h,
		apiKeyHash:    strings.ToLower(opts.APIKeyHash),
		skipAuth:      opts.SkipAuth,
		maxBatchPaths: opts.MaxBatchPaths,
		maxBatchBytes: opts.MaxBatchBytes,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the middleware stack and endpoints.
// Decision queries are open to indexers; everything that changes the engine
// requires the API key.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Post("/decisions", a.handleDecision)
		r.Post("/decisions/batch", a.handleBatchDecision)
		r.Get("/indexes/{name}", a.handleIndex)
		r.Get("/version", a.handleVersion)
		r.Get("/stats", a.handleStats)
		r.Get("/settings", a.handleGetSettings)
		r.Post("/settings/validate", a.handleValidateSettings)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticateAPIKey)

			r.Put("/settings", a.handlePutSettings)
			r.Post("/cache/invalidate", a.handleInvalidateCache)
			r.Post("/session/reset", a.handleSessionReset)
		})
	})
}

// handleHealthCheck answers 200 while an engine serves queries, 503 before.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if a.host.Current() == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "starting"})
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
