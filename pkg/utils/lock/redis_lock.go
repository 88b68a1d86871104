package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock is a best-effort mutual exclusion primitive for scheduled
// jobs. It keeps overlapping cron ticks from piling up; correctness of the
// money-moving state transitions never depends on it (those are guarded by
// conditional updates in the database).
type DistributedLock interface {
	// Acquire tries to take the lock for ttl. Returns false when another
	// holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the lock.
	Release(ctx context.Context, key string) error
}

// RedisLock implements DistributedLock with SET NX.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	success, err := l.client.SetNX(ctx, "lock:"+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, "lock:"+key).Err()
}
