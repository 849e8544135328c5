package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is implemented by every backing store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports the reachability of the service's dependencies
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a HealthHandler over the named dependencies
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse lists each dependency as "up" or "down"
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// Health returns 200 when every dependency is up and 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "healthy", Dependencies: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			resp.Dependencies[name] = "down"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "up"
	}

	pkghttp.WriteJSON(w, status, resp)
}
