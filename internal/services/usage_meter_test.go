package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestUsageMeter_Remaining(t *testing.T) {
	meter := NewUsageMeter(&MockQuotaStore{}, time.Second, slog.Default())

	tests := []struct {
		name string
		sub  *models.Subscription
		want models.Allowance
	}{
		{"unlimited", NewTestSubscription("s", "pro", -1, 900), models.Allowance{Unlimited: true}},
		{"fresh", NewTestSubscription("s", "starter", 50, 0), models.Allowance{Messages: 50}},
		{"one left", NewTestSubscription("s", "starter", 50, 49), models.Allowance{Messages: 1}},
		{"exhausted", NewTestSubscription("s", "starter", 50, 50), models.Allowance{Messages: 0}},
		{"overdrawn clamps to zero", NewTestSubscription("s", "starter", 50, 53), models.Allowance{Messages: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, meter.Remaining(tt.sub))
		})
	}
}

func TestUsageMeter_ShouldWarn(t *testing.T) {
	meter := NewUsageMeter(&MockQuotaStore{}, time.Second, slog.Default())

	assert.True(t, meter.ShouldWarn(models.Allowance{Messages: 1}))
	assert.False(t, meter.ShouldWarn(models.Allowance{Messages: 0}))
	assert.False(t, meter.ShouldWarn(models.Allowance{Messages: 2}))
	assert.False(t, meter.ShouldWarn(models.Allowance{Unlimited: true}))
	assert.False(t, meter.ShouldWarn(models.Allowance{Unlimited: true, Messages: 1}))
}

func TestUsageMeter_RemainingProperties(t *testing.T) {
	meter := NewUsageMeter(&MockQuotaStore{}, time.Second, slog.Default())

	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(-1, 1000).Draw(rt, "limit")
		used := rapid.IntRange(0, 1200).Draw(rt, "used")

		a := meter.Remaining(NewTestSubscription("s", "plan", limit, used))

		if limit < 0 {
			assert.True(rt, a.Unlimited)
			assert.False(rt, meter.ShouldWarn(a))
			return
		}
		assert.False(rt, a.Unlimited)
		assert.GreaterOrEqual(rt, a.Messages, 0)
		assert.LessOrEqual(rt, a.Messages, limit)
		assert.Equal(rt, limit-used == 1, meter.ShouldWarn(a))
	})
}

func TestUsageMeter_TryConsume_Success(t *testing.T) {
	var gotID string
	quota := &MockQuotaStore{
		IncrementUsageFunc: func(ctx context.Context, subscriberID string) (bool, error) {
			gotID = subscriberID
			return true, nil
		},
	}
	meter := NewUsageMeter(quota, time.Second, slog.Default())

	assert.True(t, meter.TryConsume(context.Background(), "sub-1"))
	assert.Equal(t, "sub-1", gotID)
}

func TestUsageMeter_TryConsume_Exhausted(t *testing.T) {
	quota := &MockQuotaStore{
		IncrementUsageFunc: func(ctx context.Context, subscriberID string) (bool, error) {
			return false, nil
		},
	}
	meter := NewUsageMeter(quota, time.Second, slog.Default())

	assert.False(t, meter.TryConsume(context.Background(), "sub-1"))
}

func TestUsageMeter_TryConsume_StoreErrorNotRetried(t *testing.T) {
	calls := 0
	quota := &MockQuotaStore{
		IncrementUsageFunc: func(ctx context.Context, subscriberID string) (bool, error) {
			calls++
			return false, errors.New("connection refused")
		},
	}
	meter := NewUsageMeter(quota, time.Second, slog.Default())

	assert.False(t, meter.TryConsume(context.Background(), "sub-1"))
	assert.Equal(t, 1, calls)
}

func TestUsageMeter_TryConsume_AppliesTimeout(t *testing.T) {
	quota := &MockQuotaStore{
		IncrementUsageFunc: func(ctx context.Context, subscriberID string) (bool, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(250*time.Millisecond), deadline, 200*time.Millisecond)
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	meter := NewUsageMeter(quota, 250*time.Millisecond, slog.Default())

	assert.False(t, meter.TryConsume(context.Background(), "sub-1"))
}
