package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLimiter 基于 Redis INCR 的固定窗口计数器，多实例共享配额。
type RedisLimiter struct {
	client goredis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client goredis.UniversalClient, prefix string, limit int, window time.Duration, now func() time.Time) *RedisLimiter {
	if prefix == "" {
		prefix = "mailcode:ratelimit:"
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    now,
	}
}

// Allow 计数并判定是否放行
func (l *RedisLimiter) Allow(ctx context.Context, identity string) (Decision, error) {
	start := windowStart(l.now(), l.window)
	key := fmt.Sprintf("%s%s:%d", l.prefix, identity, start.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}

	return decide(incr.Val(), l.limit, start.Add(l.window)), nil
}
