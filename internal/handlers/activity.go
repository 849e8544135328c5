package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/models"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ActivityService is the subset of services.GovernanceService used by ActivityHandler
type ActivityService interface {
	TrackActivity(ctx context.Context, subscriberID string, activityType models.ActivityType, details models.ActivityDetails) bool
	History(ctx context.Context, subscriberID string, limit, offset int) ([]*models.ActivityEvent, error)
}

// ActivityHandler records and lists the authenticated subscriber's activity
type ActivityHandler struct {
	activity ActivityService
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activity ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// RecordActivityRequest is the body of POST /v1/activity
type RecordActivityRequest struct {
	ActivityType string                 `json:"activity_type" validate:"required,client_activity"`
	Details      map[string]interface{} `json:"details" validate:"omitempty,max=32"`
}

// RecordActivityResponse reports whether the event was stored
type RecordActivityResponse struct {
	Recorded bool `json:"recorded"`
}

// ActivityListResponse is a page of the subscriber's activity history
type ActivityListResponse struct {
	Events []*models.ActivityEvent `json:"events"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// Record stores one client-reported activity event. Storage failures are not
// surfaced as errors; the response's recorded flag reports them.
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSubscriberFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RecordActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	activityType, err := models.ParseActivityType(req.ActivityType)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}

	recorded := h.activity.TrackActivity(r.Context(), claims.Subject, activityType, sanitizeDetails(req.Details))
	pkghttp.WriteJSON(w, http.StatusAccepted, RecordActivityResponse{Recorded: recorded})
}

// List returns the subscriber's most recent events, newest first
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSubscriberFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	events, err := h.activity.History(r.Context(), claims.Subject, limit, offset)
	if err != nil {
		pkghttp.WriteModelError(w, err)
		return
	}
	if events == nil {
		events = []*models.ActivityEvent{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ActivityListResponse{
		Events: events,
		Limit:  limit,
		Offset: offset,
	})
}

// pagination reads limit and offset, falling back to defaults on bad input
func pagination(r *http.Request) (int, int) {
	limit := defaultHistoryLimit
	offset := 0

	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxHistoryLimit {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
