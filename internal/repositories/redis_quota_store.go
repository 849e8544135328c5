package repositories

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/quota_consume.lua
var quotaConsumeScript string

//go:embed scripts/quota_seed.lua
var quotaSeedScript string

const (
	consumeNotSeeded = -1
	consumeExhausted = 0
	consumeOK        = 1
)

// DurableQuota is the system of record the Redis counters are seeded from
type DurableQuota interface {
	GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error)
	IncrementUsage(ctx context.Context, subscriberID string) (bool, error)
}

// RedisQuotaOptions configures a RedisQuotaStore
type RedisQuotaOptions struct {
	KeyPrefix  string
	CounterTTL time.Duration
}

// RedisQuotaStore keeps live message counters in Redis. A counter is seeded
// from the durable subscription on first use and consumed by a Lua
// compare-and-increment, so concurrent sends across instances never overshoot.
// Successful consumes are written through to the durable store.
type RedisQuotaStore struct {
	client  redis.UniversalClient
	durable DurableQuota
	consume *redis.Script
	seed    *redis.Script
	opts    RedisQuotaOptions
	logger  *slog.Logger
}

// NewRedisQuotaStore verifies the connection and returns a RedisQuotaStore
func NewRedisQuotaStore(ctx context.Context, client redis.UniversalClient, durable DurableQuota, opts RedisQuotaOptions, logger *slog.Logger) (*RedisQuotaStore, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "pmcoach:usage:"
	}
	if opts.CounterTTL <= 0 {
		opts.CounterTTL = 24 * time.Hour
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := &RedisQuotaStore{
		client:  client,
		durable: durable,
		consume: redis.NewScript(quotaConsumeScript),
		seed:    redis.NewScript(quotaSeedScript),
		opts:    opts,
		logger:  logger,
	}
	if err := s.consume.Load(ctx, client).Err(); err != nil {
		return nil, fmt.Errorf("failed to load quota script: %w", err)
	}
	if err := s.seed.Load(ctx, client).Err(); err != nil {
		return nil, fmt.Errorf("failed to load seed script: %w", err)
	}
	return s, nil
}

func (s *RedisQuotaStore) key(subscriberID string) string {
	return s.opts.KeyPrefix + subscriberID
}

// IncrementUsage consumes one message from the live counter
func (s *RedisQuotaStore) IncrementUsage(ctx context.Context, subscriberID string) (bool, error) {
	result, err := s.runConsume(ctx, subscriberID)
	if err != nil {
		return false, err
	}

	if result == consumeNotSeeded {
		seeded, err := s.seedCounter(ctx, subscriberID)
		if err != nil || !seeded {
			return false, err
		}
		if result, err = s.runConsume(ctx, subscriberID); err != nil {
			return false, err
		}
	}

	if result != consumeOK {
		return false, nil
	}

	ok, err := s.durable.IncrementUsage(ctx, subscriberID)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "failed to write usage through to durable store",
			slog.String("subscriber_id", subscriberID),
			slog.Any("error", err))
	case !ok:
		s.logger.WarnContext(ctx, "durable store refused usage the live counter allowed",
			slog.String("subscriber_id", subscriberID))
	}
	return true, nil
}

// GetSubscription returns the durable subscription with the live used count overlaid
func (s *RedisQuotaStore) GetSubscription(ctx context.Context, subscriberID string) (*models.Subscription, error) {
	sub, err := s.durable.GetSubscription(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	used, err := s.client.HGet(ctx, s.key(subscriberID), "used").Int()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		s.logger.WarnContext(ctx, "failed to read live usage counter",
			slog.String("subscriber_id", subscriberID),
			slog.Any("error", err))
	default:
		sub.MessagesUsed = used
	}
	return sub, nil
}

// HealthCheck pings Redis
func (s *RedisQuotaStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Invalidate overwrites the live counter with the stored subscription. The key
// is left present, so a seed racing with the plan change cannot restore the old
// limit.
func (s *RedisQuotaStore) Invalidate(ctx context.Context, sub *models.Subscription) error {
	key := s.key(sub.SubscriberID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "used", sub.MessagesUsed, "limit", counterLimit(sub))
		pipe.PExpire(ctx, key, s.opts.CounterTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisQuotaStore) runConsume(ctx context.Context, subscriberID string) (int64, error) {
	result, err := s.consume.Run(ctx, s.client, []string{s.key(subscriberID)},
		s.opts.CounterTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: quota script: %v", models.ErrStoreUnavailable, err)
	}
	return result, nil
}

// seedCounter loads the durable usage into Redis. It returns false when the
// subscriber has no subscription.
func (s *RedisQuotaStore) seedCounter(ctx context.Context, subscriberID string) (bool, error) {
	sub, err := s.durable.GetSubscription(ctx, subscriberID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to seed usage counter: %w", err)
	}

	err = s.seed.Run(ctx, s.client, []string{s.key(subscriberID)},
		sub.MessagesUsed, counterLimit(sub), s.opts.CounterTTL.Milliseconds(),
	).Err()
	if err != nil {
		return false, fmt.Errorf("%w: seed script: %v", models.ErrStoreUnavailable, err)
	}
	return true, nil
}

// counterLimit is the hash form of a limit; -1 means unlimited
func counterLimit(sub *models.Subscription) int {
	if sub.MessageLimit == nil {
		return -1
	}
	return *sub.MessageLimit
}
