package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubscriptionWriter struct {
	UpsertSubscriptionFunc func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error)
}

func (m *mockSubscriptionWriter) UpsertSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
	return m.UpsertSubscriptionFunc(ctx, sub, resetUsage)
}

type mockInvalidator struct {
	calls []*models.Subscription
	err   error
}

func (m *mockInvalidator) Invalidate(ctx context.Context, sub *models.Subscription) error {
	m.calls = append(m.calls, sub)
	return m.err
}

func newTestSubscriptionService(writer SubscriptionWriter, invalidator QuotaInvalidator) (*SubscriptionService, *MockActivityStore) {
	store := &MockActivityStore{}
	recorder := NewActivityRecorder(store, &MockSubscriptionLookup{}, RecorderConfig{}, clockwork.NewFakeClock(), slog.Default())
	return NewSubscriptionService(writer, invalidator, recorder, time.Second, slog.Default()), store
}

func TestSubscriptionService_ChangeSubscription(t *testing.T) {
	writer := &mockSubscriptionWriter{
		UpsertSubscriptionFunc: func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
			assert.True(t, resetUsage)
			copied := *sub
			copied.MessagesUsed = 0
			return &copied, nil
		},
	}
	invalidator := &mockInvalidator{}
	svc, store := newTestSubscriptionService(writer, invalidator)

	updated, err := svc.ChangeSubscription(context.Background(), NewTestSubscription(testActorID, "growth", 200, 37), true)

	require.NoError(t, err)
	assert.Equal(t, "growth", updated.PlanID)
	require.Len(t, invalidator.calls, 1)
	assert.Same(t, updated, invalidator.calls[0])
	assert.Equal(t, 0, invalidator.calls[0].MessagesUsed)
	assert.Equal(t, 200, *invalidator.calls[0].MessageLimit)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivitySubscriptionChanged, events[0].ActivityType)
	assert.Equal(t, "growth", events[0].PlanID)
	assert.Equal(t, 200, events[0].Details["message_limit"])
}

func TestSubscriptionService_ChangeSubscription_Validation(t *testing.T) {
	writer := &mockSubscriptionWriter{
		UpsertSubscriptionFunc: func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
			t.Fatal("writer must not be called")
			return nil, nil
		},
	}
	svc, _ := newTestSubscriptionService(writer, nil)

	tests := []struct {
		name string
		sub  *models.Subscription
	}{
		{"bad id", NewTestSubscription("user-1", "pro", -1, 0)},
		{"no plan", NewTestSubscription(testActorID, "", -1, 0)},
		{"negative limit", &models.Subscription{SubscriberID: testActorID, PlanID: "x", MessageLimit: func() *int { v := -5; return &v }()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeSubscription(context.Background(), tt.sub, false)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}

func TestSubscriptionService_ChangeSubscription_WriteFailure(t *testing.T) {
	writer := &mockSubscriptionWriter{
		UpsertSubscriptionFunc: func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
			return nil, models.ErrStoreUnavailable
		},
	}
	svc, store := newTestSubscriptionService(writer, nil)

	_, err := svc.ChangeSubscription(context.Background(), NewTestSubscription(testActorID, "pro", -1, 0), false)

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Empty(t, store.Events())
}

func TestSubscriptionService_InvalidateFailureDoesNotFail(t *testing.T) {
	writer := &mockSubscriptionWriter{
		UpsertSubscriptionFunc: func(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
			return sub, nil
		},
	}
	svc, store := newTestSubscriptionService(writer, &mockInvalidator{err: errors.New("redis down")})

	_, err := svc.ChangeSubscription(context.Background(), NewTestSubscription(testActorID, "pro", -1, 0), false)

	require.NoError(t, err)
	assert.Len(t, store.Events(), 1)
	assert.Equal(t, "unlimited", store.Events()[0].Details["message_limit"])
}
