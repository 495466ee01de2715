package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow counts hits in Redis so the cap holds across instances behind
// a load balancer.
type RedisWindow struct {
	client *redis.Client
}

// NewRedisWindow constructs a Redis-backed window counter.
func NewRedisWindow(client *redis.Client) *RedisWindow {
	return &RedisWindow{client: client}
}

func (w *RedisWindow) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	bucket := windowKey(key, window, time.Now())

	pipe := w.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	// Expire a little past the window so a bucket read at its boundary still
	// resolves.
	pipe.Expire(ctx, bucket, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit incr: %w", err)
	}
	return incr.Val(), nil
}
