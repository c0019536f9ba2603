package handlers

import (
	"context"
	"net/http"
	"time"
)

// ReadinessChecker reports whether a backing dependency is reachable.
type ReadinessChecker func(ctx context.Context) error

var startTime = time.Now()

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	check ReadinessChecker
}

// NewHealthHandlers constructs health handlers. The checker may be nil, in
// which case readiness always succeeds.
func NewHealthHandlers(check ReadinessChecker) *HealthHandlers {
	return &HealthHandlers{check: check}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports whether the service can reach its dependencies.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h != nil && h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}
