package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/craftlab/ai-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisUsage keeps usage counters in Redis so multiple gateway
// processes share one quota pool. Calendar alignment comes from baking
// the UTC day and month into the key; expired periods simply stop
// being read and age out via TTL.
type RedisUsage struct {
	redis *storage.RedisClient
}

func NewRedisUsage(redis *storage.RedisClient) *RedisUsage {
	return &RedisUsage{redis: redis}
}

func (r *RedisUsage) Usage(ctx context.Context, orgID, service string, now time.Time) (Usage, error) {
	monthly, err := r.counter(ctx, r.monthKey(orgID, service, now))
	if err != nil {
		return Usage{}, err
	}

	daily, err := r.counter(ctx, r.dayKey(orgID, service, now))
	if err != nil {
		return Usage{}, err
	}

	return Usage{Monthly: monthly, Daily: daily}, nil
}

func (r *RedisUsage) Increment(ctx context.Context, orgID, service string, now time.Time) error {
	monthKey := r.monthKey(orgID, service, now)
	count, err := r.redis.Incr(ctx, monthKey)
	if err != nil {
		return fmt.Errorf("quota increment for %s: %w", monthKey, err)
	}
	if count == 1 {
		r.redis.Expire(ctx, monthKey, 35*24*time.Hour)
	}

	dayKey := r.dayKey(orgID, service, now)
	count, err = r.redis.Incr(ctx, dayKey)
	if err != nil {
		return fmt.Errorf("quota increment for %s: %w", dayKey, err)
	}
	if count == 1 {
		r.redis.Expire(ctx, dayKey, 48*time.Hour)
	}

	return nil
}

func (r *RedisUsage) counter(ctx context.Context, key string) (int, error) {
	val, err := r.redis.Get(ctx, key)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota read for %s: %w", key, err)
	}

	count, _ := strconv.Atoi(val)
	return count, nil
}

func (r *RedisUsage) dayKey(orgID, service string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:day:%s", orgID, service, now.UTC().Format("20060102"))
}

func (r *RedisUsage) monthKey(orgID, service string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:month:%s", orgID, service, now.UTC().Format("200601"))
}
