package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailcode/backend/internal/domain"
)

// RedisCache 基于 Redis 的结果缓存，多实例部署时共享。
type RedisCache struct {
	client goredis.UniversalClient
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewRedisCache 创建 Redis 结果缓存
func NewRedisCache(client goredis.UniversalClient, prefix string, window time.Duration, now func() time.Time) *RedisCache {
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "mailcode:result:"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		window: window,
		now:    now,
	}
}

// Get 获取缓存值
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ExtractionResult, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, true, nil
}

// Put 写入缓存，过期时间为当前时间桶的剩余时长。
func (c *RedisCache) Put(ctx context.Context, key string, result *domain.ExtractionResult) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	ttl := TTLUntilRollover(c.now(), c.window)
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
