package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/craftlab/ai-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter stores window counters as Redis sorted sets keyed by
// (key, rule), scored by timestamp. It is the shared-store substitute
// for MemoryLimiter when the gateway runs more than one process. The
// check-then-commit contract is the same; two processes racing on the
// last slot can briefly overshoot by one, which the deployment accepts.
type RedisLimiter struct {
	redis *storage.RedisClient
}

func NewRedisLimiter(redis *storage.RedisClient) *RedisLimiter {
	return &RedisLimiter{redis: redis}
}

func (r *RedisLimiter) CheckAndRecord(ctx context.Context, key Key, rules []Rule, now time.Time) (*Decision, error) {
	sorted := sortRules(rules)

	// Check pass: trim and count every rule before touching anything.
	for _, rule := range sorted {
		redisKey := r.counterKey(key, rule)
		windowStart := now.Add(-rule.Window)

		pipe := r.redis.Pipeline()
		pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
		countCmd := pipe.ZCard(ctx, redisKey)

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("rate limit check for %s: %w", redisKey, err)
		}

		current := int(countCmd.Val())
		if current >= rule.MaxRequests {
			retryAfter, err := r.retryAfter(ctx, redisKey, rule.Window, now)
			if err != nil {
				return nil, err
			}

			return &Decision{
				Admitted:   false,
				Rule:       rule.Name,
				Limit:      rule.MaxRequests,
				Current:    current,
				Window:     rule.Window,
				RetryAfter: retryAfter,
			}, nil
		}
	}

	// Commit pass: record on every counter.
	for _, rule := range sorted {
		redisKey := r.counterKey(key, rule)

		err := r.redis.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d", now.UnixNano()),
		})
		if err != nil {
			return nil, fmt.Errorf("rate limit record for %s: %w", redisKey, err)
		}

		r.redis.Expire(ctx, redisKey, rule.Window)
	}

	return &Decision{Admitted: true}, nil
}

// Sweep is a no-op: Redis expires idle counters via key TTLs.
func (r *RedisLimiter) Sweep(ctx context.Context, now time.Time) int {
	return 0
}

// retryAfter derives the wait from the oldest entry in the sorted set.
func (r *RedisLimiter) retryAfter(ctx context.Context, redisKey string, window time.Duration, now time.Time) (time.Duration, error) {
	oldest, err := r.redis.ZRange(ctx, redisKey, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("rate limit oldest entry for %s: %w", redisKey, err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	var oldestNano int64
	fmt.Sscanf(oldest[0], "%d", &oldestNano)

	wait := time.Unix(0, oldestNano).Add(window).Sub(now)
	if wait < 0 {
		wait = 0
	}

	return wait, nil
}

func (r *RedisLimiter) counterKey(key Key, rule Rule) string {
	return fmt.Sprintf("ratelimit:%s:%s", key.String(), rule.Name)
}
