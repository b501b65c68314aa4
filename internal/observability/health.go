package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
)

// ReadinessResponse is the readiness body. Orchestrators only read the status code.
type ReadinessResponse struct {
	Status map[string]string `json:"status"`
}

// liveness answers 200 while the process serves HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel within the configured timeout.
// Any failure turns the answer into 503.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ReadinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: make(map[string]string, len(s.checkers))}
	healthy := true

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// WARN: the orchestrator retries, so a single failure is not an incident
				s.logger.Warn("readiness check failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				resp.Status[c.Name()] = fmt.Sprintf("down: %v", err)
				healthy = false
				return
			}
			resp.Status[c.Name()] = "up"
		}(checker)
	}

	wg.Wait()

	if healthy {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
