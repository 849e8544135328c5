package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pmcoach/internal/database"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowScanner supports both a single pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// SubscriptionRepository handles subscription and message-usage data access
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository
func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{pool: db.Pool}
}

func scanSubscriptionRow(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.SubscriberID, &sub.PlanID, &sub.MessageLimit, &sub.MessagesUsed)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &sub, nil
}

// GetSubscription retrieves the subscription for subscriberID
func (r *SubscriptionRepository) GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error) {
	query := `
		SELECT subscriber_id::text, plan_id, message_limit, messages_used
		FROM subscriptions
		WHERE subscriber_id = $1
	`

	sub, err := scanSubscriptionRow(r.pool.QueryRow(ctx, query, subscriberID))
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// IncrementUsage consumes one message when the subscriber is below their limit.
// The guard and the increment are a single statement, so concurrent sends
// can never push messages_used past message_limit.
func (r *SubscriptionRepository) IncrementUsage(ctx context.Context, subscriberID string) (bool, error) {
	query := `
		UPDATE subscriptions
		SET messages_used = messages_used + 1, updated_at = NOW()
		WHERE subscriber_id = $1
		  AND (message_limit IS NULL OR messages_used < message_limit)
	`

	tag, err := r.pool.Exec(ctx, query, subscriberID)
	if err != nil {
		return false, fmt.Errorf("failed to increment usage: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertSubscription creates or replaces a subscriber's plan. Usage is kept
// unless resetUsage is set, as on a new billing period.
func (r *SubscriptionRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
	query := `
		INSERT INTO subscriptions (subscriber_id, plan_id, message_limit, messages_used, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (subscriber_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
		    message_limit = EXCLUDED.message_limit,
		    messages_used = CASE WHEN $5 THEN 0 ELSE subscriptions.messages_used END,
		    updated_at = EXCLUDED.updated_at
		RETURNING subscriber_id::text, plan_id, message_limit, messages_used
	`

	result, err := scanSubscriptionRow(r.pool.QueryRow(ctx, query,
		sub.SubscriberID, sub.PlanID, sub.MessageLimit, time.Now().UTC(), resetUsage))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return result, nil
}
