package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/google/uuid"
)

// remainingUnknown is recorded when the pre-send allowance could not be read
const remainingUnknown = "unknown"

// MessageDecision is the outcome of a metered send
type MessageDecision struct {
	Allowed           bool        `json:"allowed"`
	LowBalanceWarning bool        `json:"low_balance_warning"`
	RemainingBefore   interface{} `json:"remaining_before"`
}

// UsageStatus is a read-only snapshot of a subscriber's allowance
type UsageStatus struct {
	PlanID            string `json:"plan_id"`
	Unlimited         bool   `json:"unlimited"`
	Remaining         int    `json:"remaining"`
	LowBalanceWarning bool   `json:"low_balance_warning"`
}

// GovernanceService composes the usage meter and activity recorder into the
// metered operations used by the rest of the application
type GovernanceService struct {
	meter         *UsageMeter
	recorder      *ActivityRecorder
	subscriptions SubscriptionLookup
	storeTimeout  time.Duration
	logger        *slog.Logger
}

// NewGovernanceService creates a new GovernanceService
func NewGovernanceService(meter *UsageMeter, recorder *ActivityRecorder, subscriptions SubscriptionLookup, storeTimeout time.Duration, logger *slog.Logger) *GovernanceService {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &GovernanceService{
		meter:         meter,
		recorder:      recorder,
		subscriptions: subscriptions,
		storeTimeout:  storeTimeout,
		logger:        logger,
	}
}

// TrackMessage consumes one message for subscriberID and records a message_sent
// event when the consume succeeds. The increment result alone decides Allowed;
// the pre-read allowance only drives the low-balance warning. An actor that is
// not a UUID is refused before any quota is touched.
func (s *GovernanceService) TrackMessage(ctx context.Context, subscriberID string) MessageDecision {
	if _, err := uuid.Parse(subscriberID); err != nil {
		metrics.QuotaConsumption.WithLabelValues("rejected").Inc()
		s.logger.WarnContext(ctx, "message refused: unknown actor")
		return MessageDecision{}
	}

	decision := MessageDecision{RemainingBefore: remainingUnknown}

	sub, err := s.lookup(ctx, subscriberID)
	planID := ""
	if err != nil {
		s.logger.WarnContext(ctx, "subscription lookup failed before send",
			slog.String("subscriber_id", subscriberID),
			slog.Any("error", err))
	} else {
		allowance := s.meter.Remaining(sub)
		decision.RemainingBefore = allowance.DetailValue()
		decision.LowBalanceWarning = s.meter.ShouldWarn(allowance)
		planID = sub.PlanID
	}

	if decision.LowBalanceWarning {
		metrics.LowBalanceWarnings.Inc()
		s.logger.InfoContext(ctx, "low message balance",
			slog.String("subscriber_id", subscriberID))
	}

	if !s.meter.TryConsume(ctx, subscriberID) {
		return decision
	}
	decision.Allowed = true

	details := models.ActivityDetails{
		models.DetailRemainingBefore:   decision.RemainingBefore,
		models.DetailLowBalanceWarning: decision.LowBalanceWarning,
	}
	if planID != "" {
		s.recorder.recordForPlan(ctx, subscriberID, models.ActivityMessageSent, details, planID)
	} else {
		s.recorder.Record(ctx, subscriberID, models.ActivityMessageSent, details)
	}

	return decision
}

// TrackActivity records a non-metered activity for subscriberID
func (s *GovernanceService) TrackActivity(ctx context.Context, subscriberID string, activityType models.ActivityType, details models.ActivityDetails) bool {
	return s.recorder.Record(ctx, subscriberID, activityType, details)
}

// Usage returns the subscriber's current allowance without consuming anything
func (s *GovernanceService) Usage(ctx context.Context, subscriberID string) (*UsageStatus, error) {
	sub, err := s.lookup(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	allowance := s.meter.Remaining(sub)
	return &UsageStatus{
		PlanID:            sub.PlanID,
		Unlimited:         allowance.Unlimited,
		Remaining:         allowance.Messages,
		LowBalanceWarning: s.meter.ShouldWarn(allowance),
	}, nil
}

// History returns the subscriber's own activity trail
func (s *GovernanceService) History(ctx context.Context, subscriberID string, limit, offset int) ([]*models.ActivityEvent, error) {
	return s.recorder.History(ctx, subscriberID, limit, offset)
}

func (s *GovernanceService) lookup(ctx context.Context, subscriberID string) (*models.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	start := time.Now()
	sub, err := s.subscriptions.GetSubscription(ctx, subscriberID)
	metrics.ObserveStoreCall("get_subscription", start)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, models.ErrNotFound
	}
	return sub, nil
}
