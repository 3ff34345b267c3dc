package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaderKey = "adbudget:jobs:leader"

// Lease is the single-runner guarantee for the job pipeline. Only the
// holder runs; everyone else skips the tick.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Held(ctx context.Context) bool
	Renew(ctx context.Context) error
	Release(ctx context.Context)
}

// RedisLease implements the lease as a Redis key with a TTL. The value
// is a per-process id so a holder can tell its own lease from one taken
// over by another instance after expiry.
type RedisLease struct {
	rdb        *redis.Client
	ttl        time.Duration
	instanceID string
	logger     *slog.Logger
}

func NewRedisLease(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLease {
	return &RedisLease{
		rdb:        rdb,
		ttl:        ttl,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, leaderKey, l.instanceID, l.ttl).Result()
}

func (l *RedisLease) Held(ctx context.Context) bool {
	owner, err := l.rdb.Get(ctx, leaderKey).Result()
	if err != nil {
		return false
	}
	return owner == l.instanceID
}

func (l *RedisLease) Renew(ctx context.Context) error {
	return l.rdb.Expire(ctx, leaderKey, l.ttl).Err()
}

func (l *RedisLease) Release(ctx context.Context) {
	if !l.Held(ctx) {
		return
	}
	if err := l.rdb.Del(ctx, leaderKey).Err(); err != nil {
		l.logger.Error("lease release failed", "error", err)
	}
}
