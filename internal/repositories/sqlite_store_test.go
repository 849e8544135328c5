package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "governance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func intPtr(v int) *int { return &v }

func TestSQLiteStore_GetSubscription_NotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.GetSubscription(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	created, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "starter", MessageLimit: intPtr(50)}, false)
	require.NoError(t, err)
	assert.Equal(t, "starter", created.PlanID)
	assert.Equal(t, 0, created.MessagesUsed)

	got, err := store.GetSubscription(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.MessageLimit)
	assert.Equal(t, 50, *got.MessageLimit)
}

func TestSQLiteStore_IncrementUsage_StopsAtLimit(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "starter", MessageLimit: intPtr(2)}, false)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := store.IncrementUsage(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := store.IncrementUsage(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	sub, err := store.GetSubscription(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.MessagesUsed)
}

func TestSQLiteStore_IncrementUsage_UnlimitedAndUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "pro"}, false)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := store.IncrementUsage(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := store.IncrementUsage(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_IncrementUsage_ConcurrentNeverExceedsLimit(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "starter", MessageLimit: intPtr(10)}, false)
	require.NoError(t, err)

	var consumed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.IncrementUsage(ctx, id); err == nil && ok {
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()

	sub, err := store.GetSubscription(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, sub.MessagesUsed)
	assert.Equal(t, int32(10), consumed.Load())
}

func TestSQLiteStore_UpsertResetsUsageOnRequest(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "starter", MessageLimit: intPtr(5)}, false)
	require.NoError(t, err)
	_, err = store.IncrementUsage(ctx, id)
	require.NoError(t, err)

	kept, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "growth", MessageLimit: intPtr(100)}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.MessagesUsed)
	assert.Equal(t, "growth", kept.PlanID)

	reset, err := store.UpsertSubscription(ctx, &models.Subscription{SubscriberID: id, PlanID: "growth", MessageLimit: intPtr(100)}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.MessagesUsed)
}

func TestSQLiteStore_AppendAndList(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	actor := uuid.NewString()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for i, typ := range []models.ActivityType{models.ActivityLogin, models.ActivityPageView, models.ActivityMessageSent} {
		err := store.Append(ctx, &models.ActivityEvent{
			ID:           uuid.New(),
			ActorID:      actor,
			ActivityType: typ,
			Details:      models.ActivityDetails{"seq": i, models.DetailPlanID: "free"},
			PlanID:       "free",
			OccurredAt:   base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.Append(ctx, &models.ActivityEvent{
		ID: uuid.New(), ActorID: uuid.NewString(), ActivityType: models.ActivitySignup, PlanID: "free", OccurredAt: base,
	}))

	events, err := store.ListByActor(ctx, actor, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.ActivityMessageSent, events[0].ActivityType)
	assert.Equal(t, models.ActivityLogin, events[2].ActivityType)
	assert.Equal(t, base.Add(time.Second), events[0].OccurredAt)
	assert.Equal(t, float64(2), events[0].Details["seq"])
	assert.Equal(t, "free", events[0].Details[models.DetailPlanID])

	page, err := store.ListByActor(ctx, actor, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, models.ActivityPageView, page[0].ActivityType)
}

func TestSQLiteStore_AppendDuplicateIDConflicts(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	event := &models.ActivityEvent{
		ID: uuid.New(), ActorID: uuid.NewString(), ActivityType: models.ActivityLogin, PlanID: "free", OccurredAt: time.Now(),
	}

	require.NoError(t, store.Append(ctx, event))
	assert.Error(t, store.Append(ctx, event))
}

func TestSQLiteStore_HealthCheck(t *testing.T) {
	store := newTestSQLiteStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))
}
