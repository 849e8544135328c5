package handlers

import (
	"net/http"
	"strings"

	"github.com/BradenHooton/pmcoach/internal/models"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

// LoginThrottleService is the subset of services.LoginThrottle used by ThrottleHandler
type LoginThrottleService interface {
	CheckAllowed(identity string) models.LockoutDecision
	RecordFailure(identity string)
	Reset(identity string)
}

// ThrottleHandler exposes the login throttle to the authentication front end
type ThrottleHandler struct {
	throttle LoginThrottleService
}

// NewThrottleHandler creates a new ThrottleHandler
func NewThrottleHandler(throttle LoginThrottleService) *ThrottleHandler {
	return &ThrottleHandler{throttle: throttle}
}

// IdentityRequest names the login identity a throttle call applies to
type IdentityRequest struct {
	Identity string `json:"identity" validate:"required,max=320"`
}

// Check reports whether a login attempt for the identity may proceed
func (h *ThrottleHandler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.readIdentity(w, r)
	if !ok {
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, h.throttle.CheckAllowed(identity))
}

// RecordFailure counts one failed login for the identity
func (h *ThrottleHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.readIdentity(w, r)
	if !ok {
		return
	}
	h.throttle.RecordFailure(identity)
	w.WriteHeader(http.StatusNoContent)
}

// Reset clears the identity's failure history after a successful login
func (h *ThrottleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.readIdentity(w, r)
	if !ok {
		return
	}
	h.throttle.Reset(identity)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ThrottleHandler) readIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req IdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return "", false
	}
	req.Identity = normalizeIdentity(req.Identity)
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return "", false
	}
	return req.Identity, true
}

// normalizeIdentity folds case and surrounding whitespace so "A@x.com " and
// "a@x.com" share one ledger entry
func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
