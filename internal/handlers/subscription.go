package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/pmcoach/internal/models"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SubscriptionChanger is the subset of services.SubscriptionService used by SubscriptionHandler
type SubscriptionChanger interface {
	ChangeSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error)
}

// SubscriptionHandler applies plan changes pushed by the billing integration
type SubscriptionHandler struct {
	subscriptions SubscriptionChanger
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptions SubscriptionChanger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// ChangeSubscriptionRequest is the body of PUT /v1/subscriptions/{subscriberID}.
// A missing message_limit makes the plan unlimited.
type ChangeSubscriptionRequest struct {
	PlanID       string `json:"plan_id" validate:"required,max=64"`
	MessageLimit *int   `json:"message_limit" validate:"omitempty,gte=0"`
	ResetUsage   bool   `json:"reset_usage"`
}

// Put creates or replaces the subscriber's plan
func (h *SubscriptionHandler) Put(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberID")
	if _, err := uuid.Parse(subscriberID); err != nil {
		pkghttp.WriteBadRequest(w, "invalid subscriber id")
		return
	}

	var req ChangeSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sub, err := h.subscriptions.ChangeSubscription(r.Context(), &models.Subscription{
		SubscriberID: subscriberID,
		PlanID:       req.PlanID,
		MessageLimit: req.MessageLimit,
	}, req.ResetUsage)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, sub)
}
