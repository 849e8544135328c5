package services

import (
	"context"
	"sync"

	"github.com/BradenHooton/pmcoach/internal/models"
)

// MockQuotaStore implements QuotaStore for testing
type MockQuotaStore struct {
	IncrementUsageFunc func(ctx context.Context, subscriberID string) (bool, error)
}

func (m *MockQuotaStore) IncrementUsage(ctx context.Context, subscriberID string) (bool, error) {
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, subscriberID)
	}
	return false, models.ErrStoreUnavailable
}

// MockSubscriptionLookup implements SubscriptionLookup for testing
type MockSubscriptionLookup struct {
	GetSubscriptionFunc func(ctx context.Context, subscriberID string) (*models.Subscription, error)
}

func (m *MockSubscriptionLookup) GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, subscriberID)
	}
	return nil, models.ErrNotFound
}

// MockActivityStore implements ActivityStore and ActivityReader for testing.
// Appended events are captured in order.
type MockActivityStore struct {
	AppendFunc      func(ctx context.Context, event *models.ActivityEvent) error
	ListByActorFunc func(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error)

	mu     sync.Mutex
	events []*models.ActivityEvent
}

func (m *MockActivityStore) Append(ctx context.Context, event *models.ActivityEvent) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *MockActivityStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error) {
	if m.ListByActorFunc != nil {
		return m.ListByActorFunc(ctx, actorID, limit, offset)
	}
	return []*models.ActivityEvent{}, nil
}

// Events returns the events appended so far
func (m *MockActivityStore) Events() []*models.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ActivityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// NewTestSubscription creates a subscription for testing. A negative limit means unlimited.
func NewTestSubscription(subscriberID, planID string, limit, used int) *models.Subscription {
	sub := &models.Subscription{
		SubscriberID: subscriberID,
		PlanID:       planID,
		MessagesUsed: used,
	}
	if limit >= 0 {
		sub.MessageLimit = &limit
	}
	return sub
}
