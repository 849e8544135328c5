package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/google/uuid"
)

// SubscriptionWriter creates or replaces a subscriber's plan
type SubscriptionWriter interface {
	UpsertSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error)
}

// QuotaInvalidator replaces any cached usage counter with the stored subscription
type QuotaInvalidator interface {
	Invalidate(ctx context.Context, sub *models.Subscription) error
}

// SubscriptionService applies plan changes pushed by the billing system
type SubscriptionService struct {
	writer       SubscriptionWriter
	invalidator  QuotaInvalidator
	recorder     *ActivityRecorder
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService. invalidator may be nil
// when usage counters are not cached.
func NewSubscriptionService(writer SubscriptionWriter, invalidator QuotaInvalidator, recorder *ActivityRecorder, storeTimeout time.Duration, logger *slog.Logger) *SubscriptionService {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &SubscriptionService{
		writer:       writer,
		invalidator:  invalidator,
		recorder:     recorder,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// ChangeSubscription stores the new plan and records a subscription_changed event
func (s *SubscriptionService) ChangeSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
	if _, err := uuid.Parse(sub.SubscriberID); err != nil {
		return nil, fmt.Errorf("%w: subscriber id must be a uuid", models.ErrBadRequest)
	}
	if sub.PlanID == "" {
		return nil, fmt.Errorf("%w: plan id is required", models.ErrBadRequest)
	}
	if sub.MessageLimit != nil && *sub.MessageLimit < 0 {
		return nil, fmt.Errorf("%w: message limit must not be negative", models.ErrBadRequest)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	start := time.Now()
	updated, err := s.writer.UpsertSubscription(writeCtx, sub, resetUsage)
	metrics.ObserveStoreCall("upsert_subscription", start)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store subscription",
			slog.String("subscriber_id", sub.SubscriberID),
			slog.Any("error", err))
		return nil, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(writeCtx, updated); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate usage counter",
				slog.String("subscriber_id", sub.SubscriberID),
				slog.Any("error", err))
		}
	}

	limit := models.Allowance{Unlimited: updated.MessageLimit == nil}
	if updated.MessageLimit != nil {
		limit.Messages = *updated.MessageLimit
	}
	s.recorder.recordForPlan(ctx, updated.SubscriberID, models.ActivitySubscriptionChanged, models.ActivityDetails{
		"message_limit": limit.DetailValue(),
		"reset_usage":   resetUsage,
	}, updated.PlanID)

	s.logger.InfoContext(ctx, "subscription changed",
		slog.String("subscriber_id", updated.SubscriberID),
		slog.String("plan_id", updated.PlanID))

	return updated, nil
}
