package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/pmcoach/internal/database"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository handles activity event data access
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{pool: db.Pool}
}

func scanActivityRow(row rowScanner) (*models.ActivityEvent, error) {
	var event models.ActivityEvent
	err := row.Scan(
		&event.ID, &event.ActorID, &event.ActivityType,
		&event.Details, &event.PlanID, &event.OccurredAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &event, nil
}

func scanActivityRows(rows pgx.Rows) ([]*models.ActivityEvent, error) {
	defer rows.Close()

	events := make([]*models.ActivityEvent, 0)
	for rows.Next() {
		event, err := scanActivityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", database.MapPostgresError(err))
	}
	return events, nil
}

// Append inserts an activity event. Events are immutable once written.
func (r *ActivityRepository) Append(ctx context.Context, event *models.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (id, actor_id, activity_type, details, plan_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.ActorID, string(event.ActivityType),
		event.Details, event.PlanID, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", database.MapPostgresError(err))
	}
	return nil
}

// ListByActor retrieves an actor's events, newest first
func (r *ActivityRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error) {
	query := `
		SELECT id, actor_id::text, activity_type, details, plan_id, occurred_at
		FROM activity_events
		WHERE actor_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", database.MapPostgresError(err))
	}
	return scanActivityRows(rows)
}
