package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/services"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

// UsageService is the subset of services.GovernanceService used by UsageHandler
type UsageService interface {
	TrackMessage(ctx context.Context, subscriberID string) services.MessageDecision
	Usage(ctx context.Context, subscriberID string) (*services.UsageStatus, error)
}

// UsageHandler serves the authenticated subscriber's message allowance
type UsageHandler struct {
	usage UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GetUsage returns the subscriber's plan and remaining allowance
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSubscriberFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.usage.Usage(r.Context(), claims.Subject)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// TrackMessage consumes one message from the subscriber's allowance.
// A refused send is still a 200; the body's allowed flag carries the outcome.
func (h *UsageHandler) TrackMessage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSubscriberFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, h.usage.TrackMessage(r.Context(), claims.Subject))
}
