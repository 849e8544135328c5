package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultFreePlanID is the plan attributed to events whose subscriber has no subscription
const DefaultFreePlanID = "free"

// SubscriptionLookup reads a subscriber's current plan and usage.
// It returns models.ErrNotFound when the subscriber has no subscription.
type SubscriptionLookup interface {
	GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error)
}

// ActivityStore appends activity events to durable storage
type ActivityStore interface {
	Append(ctx context.Context, event *models.ActivityEvent) error
}

// ActivityReader lists an actor's recorded events, newest first
type ActivityReader interface {
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error)
}

// RecorderConfig configures an ActivityRecorder
type RecorderConfig struct {
	FreePlanID   string
	StoreTimeout time.Duration
}

// ActivityRecorder writes governed actions to the activity store with the
// dual-write pattern (slog + store). Recording never fails the caller.
type ActivityRecorder struct {
	store         ActivityStore
	subscriptions SubscriptionLookup
	config        RecorderConfig
	clock         clockwork.Clock
	logger        *slog.Logger
}

// NewActivityRecorder creates a new ActivityRecorder
func NewActivityRecorder(store ActivityStore, subscriptions SubscriptionLookup, config RecorderConfig, clock clockwork.Clock, logger *slog.Logger) *ActivityRecorder {
	if config.FreePlanID == "" {
		config.FreePlanID = DefaultFreePlanID
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ActivityRecorder{
		store:         store,
		subscriptions: subscriptions,
		config:        config,
		clock:         clock,
		logger:        logger,
	}
}

// Record persists an activity event for actorID enriched with the actor's plan.
// It returns false when the actor or type is invalid or the store write fails.
func (r *ActivityRecorder) Record(ctx context.Context, actorID string, activityType models.ActivityType, details models.ActivityDetails) bool {
	if !r.accept(ctx, actorID, activityType) {
		return false
	}
	return r.write(ctx, actorID, activityType, details, r.planFor(ctx, actorID))
}

// recordForPlan skips the subscription lookup when the caller already holds the plan
func (r *ActivityRecorder) recordForPlan(ctx context.Context, actorID string, activityType models.ActivityType, details models.ActivityDetails, planID string) bool {
	if !r.accept(ctx, actorID, activityType) {
		return false
	}
	if planID == "" {
		planID = r.config.FreePlanID
	}
	return r.write(ctx, actorID, activityType, details, planID)
}

// History returns the actor's recorded events, newest first
func (r *ActivityRecorder) History(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error) {
	reader, ok := r.store.(ActivityReader)
	if !ok {
		return nil, models.ErrNotFound
	}
	if _, err := uuid.Parse(actorID); err != nil {
		return nil, models.ErrUnknownActor
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	events, err := reader.ListByActor(ctx, actorID, limit, offset)
	metrics.ObserveStoreCall("list_activity", start)
	return events, err
}

func (r *ActivityRecorder) accept(ctx context.Context, actorID string, activityType models.ActivityType) bool {
	if _, err := uuid.Parse(actorID); err != nil {
		metrics.ActivityEvents.WithLabelValues(string(activityType), "rejected").Inc()
		r.logger.WarnContext(ctx, "activity rejected: unknown actor")
		return false
	}
	if !activityType.Valid() {
		metrics.ActivityEvents.WithLabelValues("invalid", "rejected").Inc()
		r.logger.WarnContext(ctx, "activity rejected: invalid activity type",
			slog.String("activity_type", string(activityType)))
		return false
	}
	return true
}

func (r *ActivityRecorder) planFor(ctx context.Context, actorID string) string {
	ctx, cancel := context.WithTimeout(ctx, r.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	sub, err := r.subscriptions.GetSubscription(ctx, actorID)
	metrics.ObserveStoreCall("get_subscription", start)

	switch {
	case err == nil && sub != nil && sub.PlanID != "":
		return sub.PlanID
	case err != nil && !errors.Is(err, models.ErrNotFound):
		r.logger.WarnContext(ctx, "subscription lookup failed, attributing free plan",
			slog.String("actor_id", actorID),
			slog.Any("error", err))
	}
	return r.config.FreePlanID
}

func (r *ActivityRecorder) write(ctx context.Context, actorID string, activityType models.ActivityType, details models.ActivityDetails, planID string) bool {
	now := r.clock.Now().UTC()

	enriched := details.Clone()
	enriched[models.DetailPlanID] = planID
	enriched[models.DetailCapturedAt] = now.Format(time.RFC3339Nano)

	event := &models.ActivityEvent{
		ID:           uuid.New(),
		ActorID:      actorID,
		ActivityType: activityType,
		Details:      enriched,
		PlanID:       planID,
		OccurredAt:   now,
	}

	// Dual-write: immediate slog output
	r.logger.InfoContext(ctx, "activity event",
		slog.String("event_id", event.ID.String()),
		slog.String("actor_id", actorID),
		slog.String("activity_type", string(activityType)),
		slog.String("plan_id", planID),
		slog.Any("details", enriched))

	ctx, cancel := context.WithTimeout(ctx, r.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := r.store.Append(ctx, event)
	metrics.ObserveStoreCall("append_activity", start)

	if err != nil {
		metrics.ActivityEvents.WithLabelValues(string(activityType), "failed").Inc()
		r.logger.ErrorContext(ctx, "failed to persist activity event",
			slog.String("event_id", event.ID.String()),
			slog.String("activity_type", string(activityType)),
			slog.Any("error", err))
		return false
	}

	metrics.ActivityEvents.WithLabelValues(string(activityType), "recorded").Inc()
	return true
}
