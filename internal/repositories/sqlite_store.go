package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

// sqliteTimeFormat is fixed width so TEXT timestamps sort chronologically
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	subscriber_id TEXT PRIMARY KEY,
	plan_id       TEXT    NOT NULL,
	message_limit INTEGER CHECK (message_limit IS NULL OR message_limit >= 0),
	messages_used INTEGER NOT NULL DEFAULT 0 CHECK (messages_used >= 0),
	updated_at    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_events (
	id            TEXT PRIMARY KEY,
	actor_id      TEXT NOT NULL,
	activity_type TEXT NOT NULL,
	details       TEXT NOT NULL DEFAULT '{}',
	plan_id       TEXT NOT NULL,
	occurred_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_events_actor_occurred
	ON activity_events (actor_id, occurred_at DESC);
`

// SQLiteStore is the embedded backend for subscriptions, message usage and
// activity events. It uses WAL mode so readers never block the single writer.
type SQLiteStore struct {
	db *sqlx.DB
}

// sqliteActivityRow mirrors activity_events; timestamps are stored as TEXT
type sqliteActivityRow struct {
	ID           string                 `db:"id"`
	ActorID      string                 `db:"actor_id"`
	ActivityType string                 `db:"activity_type"`
	Details      models.ActivityDetails `db:"details"`
	PlanID       string                 `db:"plan_id"`
	OccurredAt   string                 `db:"occurred_at"`
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error { return s.db.Close() }

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", mapSQLiteError(err))
	}
	return nil
}

// GetSubscription retrieves the subscription for subscriberID
func (s *SQLiteStore) GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := retrySQLite(ctx, defaultSQLiteRetry, func() error {
		return s.db.GetContext(ctx, &sub,
			`SELECT subscriber_id, plan_id, message_limit, messages_used
			 FROM subscriptions WHERE subscriber_id = ?`, subscriberID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", mapSQLiteError(err))
	}
	return &sub, nil
}

// IncrementUsage consumes one message when the subscriber is below their limit
func (s *SQLiteStore) IncrementUsage(ctx context.Context, subscriberID string) (bool, error) {
	var affected int64
	err := retrySQLite(ctx, defaultSQLiteRetry, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE subscriptions
			 SET messages_used = messages_used + 1, updated_at = ?
			 WHERE subscriber_id = ?
			   AND (message_limit IS NULL OR messages_used < message_limit)`,
			time.Now().UTC().Format(sqliteTimeFormat), subscriberID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment usage: %w", mapSQLiteError(err))
	}
	return affected == 1, nil
}

// UpsertSubscription creates or replaces a subscriber's plan
func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error) {
	var result models.Subscription
	err := retrySQLite(ctx, defaultSQLiteRetry, func() error {
		return s.db.GetContext(ctx, &result,
			`INSERT INTO subscriptions (subscriber_id, plan_id, message_limit, messages_used, updated_at)
			 VALUES (?, ?, ?, 0, ?)
			 ON CONFLICT (subscriber_id) DO UPDATE
			 SET plan_id = excluded.plan_id,
			     message_limit = excluded.message_limit,
			     messages_used = CASE WHEN ? THEN 0 ELSE subscriptions.messages_used END,
			     updated_at = excluded.updated_at
			 RETURNING subscriber_id, plan_id, message_limit, messages_used`,
			sub.SubscriberID, sub.PlanID, sub.MessageLimit,
			time.Now().UTC().Format(sqliteTimeFormat), resetUsage)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", mapSQLiteError(err))
	}
	return &result, nil
}

// Append inserts an activity event
func (s *SQLiteStore) Append(ctx context.Context, event *models.ActivityEvent) error {
	details, err := event.Details.Value()
	if err != nil {
		return fmt.Errorf("failed to encode activity details: %w", err)
	}

	err = retrySQLite(ctx, defaultSQLiteRetry, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO activity_events (id, actor_id, activity_type, details, plan_id, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			event.ID.String(), event.ActorID, string(event.ActivityType),
			string(details.([]byte)), event.PlanID, event.OccurredAt.UTC().Format(sqliteTimeFormat))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", mapSQLiteError(err))
	}
	return nil
}

// ListByActor retrieves an actor's events, newest first
func (s *SQLiteStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error) {
	var rows []sqliteActivityRow
	err := retrySQLite(ctx, defaultSQLiteRetry, func() error {
		rows = rows[:0]
		return s.db.SelectContext(ctx, &rows,
			`SELECT id, actor_id, activity_type, details, plan_id, occurred_at
			 FROM activity_events
			 WHERE actor_id = ?
			 ORDER BY occurred_at DESC
			 LIMIT ? OFFSET ?`, actorID, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", mapSQLiteError(err))
	}

	events := make([]*models.ActivityEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode activity event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (r sqliteActivityRow) toEvent() (*models.ActivityEvent, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	occurredAt, err := time.Parse(sqliteTimeFormat, r.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &models.ActivityEvent{
		ID:           id,
		ActorID:      r.ActorID,
		ActivityType: models.ActivityType(r.ActivityType),
		Details:      r.Details,
		PlanID:       r.PlanID,
		OccurredAt:   occurredAt,
	}, nil
}

// mapSQLiteError translates driver errors into model sentinels
func mapSQLiteError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrNotFound
	case isTransientSQLiteErr(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return err
}
