package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/pmcoach/internal/config"
	"github.com/BradenHooton/pmcoach/internal/database"
	"github.com/BradenHooton/pmcoach/internal/handlers"
	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/BradenHooton/pmcoach/internal/repositories"
	"github.com/BradenHooton/pmcoach/internal/services"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// durableStore is satisfied by both the Postgres repositories and SQLiteStore
type durableStore interface {
	GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error)
	IncrementUsage(ctx context.Context, subscriberID string) (bool, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription, resetUsage bool) (*models.Subscription, error)
}

// storeSet is everything the services need from the backing stores
type storeSet struct {
	subscriptions services.SubscriptionLookup
	quota         services.QuotaStore
	writer        services.SubscriptionWriter
	invalidator   services.QuotaInvalidator
	activity      services.ActivityStore
	health        map[string]handlers.HealthChecker
	closers       []func()
}

func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured durable store, then layers the optional
// Redis quota counters and S3 activity archive on top of it
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storeSet, error) {
	set := &storeSet{health: make(map[string]handlers.HealthChecker)}

	var durable durableStore
	var activity interface {
		services.ActivityStore
		services.ActivityReader
	}

	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		store, err := repositories.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		set.closers = append(set.closers, func() { _ = store.Close() })
		set.health["sqlite"] = store
		durable, activity = store, store
		logger.Info("using sqlite store", slog.String("path", cfg.Store.SQLitePath))

	default:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		set.closers = append(set.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		set.health["postgres"] = db
		durable = repositories.NewSubscriptionRepository(db)
		activity = repositories.NewActivityRepository(db)
	}

	set.subscriptions, set.quota, set.writer = durable, durable, durable
	set.activity = activity

	if cfg.Quota.Backend == config.QuotaBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Quota.RedisAddr,
			Password: cfg.Quota.RedisPassword,
			DB:       cfg.Quota.RedisDB,
		})
		set.closers = append(set.closers, func() { _ = client.Close() })

		counters, err := repositories.NewRedisQuotaStore(ctx, client, durable, repositories.RedisQuotaOptions{
			KeyPrefix:  cfg.Quota.RedisKeyPrefix,
			CounterTTL: cfg.Quota.CounterTTL,
		}, logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to initialize redis quota store: %w", err)
		}
		set.health["redis"] = counters
		set.subscriptions, set.quota, set.invalidator = counters, counters, counters
		logger.Info("using redis usage counters", slog.String("addr", cfg.Quota.RedisAddr))
	}

	if cfg.Archive.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.AWSRegion))
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		archive := repositories.NewS3ActivityArchive(s3.NewFromConfig(awsCfg), cfg.Archive.Bucket, cfg.Archive.Prefix)
		set.activity = repositories.NewFanoutActivityStore(activity, logger, archive)
		logger.Info("archiving activity events to s3", slog.String("bucket", cfg.Archive.Bucket))
	}

	return set, nil
}
