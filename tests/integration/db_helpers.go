package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/pmcoach/internal/database"
	"github.com/BradenHooton/pmcoach/internal/models"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("pmcoach"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Same embedded migrations the service runs on startup
	db := database.NewFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	for _, table := range []string{"activity_events", "subscriptions"} {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedSubscription inserts a subscription row. A negative limit seeds an unlimited plan.
func SeedSubscription(ctx context.Context, pool *pgxpool.Pool, subscriberID, planID string, limit, used int) (*models.Subscription, error) {
	var messageLimit *int
	if limit >= 0 {
		messageLimit = &limit
	}

	query := `
		INSERT INTO subscriptions (subscriber_id, plan_id, message_limit, messages_used)
		VALUES ($1, $2, $3, $4)
		RETURNING subscriber_id, plan_id, message_limit, messages_used
	`

	var sub models.Subscription
	err := pool.QueryRow(ctx, query, subscriberID, planID, messageLimit, used).Scan(
		&sub.SubscriberID,
		&sub.PlanID,
		&sub.MessageLimit,
		&sub.MessagesUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}
	return &sub, nil
}

// CountActivity returns how many events of activityType are stored for actorID
func CountActivity(ctx context.Context, pool *pgxpool.Pool, actorID string, activityType models.ActivityType) (int, error) {
	var n int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE actor_id = $1 AND activity_type = $2`,
		actorID, string(activityType),
	).Scan(&n)
	return n, err
}
