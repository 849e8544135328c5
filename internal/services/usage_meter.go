package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/metrics"
	"github.com/BradenHooton/pmcoach/internal/models"
)

// DefaultStoreTimeout bounds every call into an external store
const DefaultStoreTimeout = 3 * time.Second

// QuotaStore performs the atomic compare-and-increment of a subscriber's
// message usage. IncrementUsage returns true only when the increment happened.
type QuotaStore interface {
	IncrementUsage(ctx context.Context, subscriberID string) (bool, error)
}

// UsageMeter computes remaining allowances and gates message consumption
type UsageMeter struct {
	quota        QuotaStore
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewUsageMeter creates a new UsageMeter
func NewUsageMeter(quota QuotaStore, storeTimeout time.Duration, logger *slog.Logger) *UsageMeter {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &UsageMeter{
		quota:        quota,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Remaining returns the messages left on sub, or unlimited when the plan has no limit
func (m *UsageMeter) Remaining(sub *models.Subscription) models.Allowance {
	if sub.MessageLimit == nil {
		return models.Allowance{Unlimited: true}
	}

	left := *sub.MessageLimit - sub.MessagesUsed
	if left < 0 {
		left = 0
	}
	return models.Allowance{Messages: left}
}

// ShouldWarn reports whether the allowance is down to its final message
func (m *UsageMeter) ShouldWarn(a models.Allowance) bool {
	return !a.Unlimited && a.Messages == 1
}

// TryConsume atomically consumes one message for subscriberID.
// Store failures are logged and reported as false; they are never retried.
func (m *UsageMeter) TryConsume(ctx context.Context, subscriberID string) bool {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	start := time.Now()
	consumed, err := m.quota.IncrementUsage(ctx, subscriberID)
	metrics.ObserveStoreCall("increment_usage", start)

	if err != nil {
		metrics.QuotaConsumption.WithLabelValues("error").Inc()
		m.logger.ErrorContext(ctx, "failed to increment message usage",
			slog.String("subscriber_id", subscriberID),
			slog.Any("error", err))
		return false
	}

	if !consumed {
		metrics.QuotaConsumption.WithLabelValues("exhausted").Inc()
		m.logger.InfoContext(ctx, "message allowance exhausted",
			slog.String("subscriber_id", subscriberID))
		return false
	}

	metrics.QuotaConsumption.WithLabelValues("consumed").Inc()
	return true
}
