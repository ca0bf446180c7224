// Package cache 按 (Flavor, 邮箱, 时间桶) 缓存成功的提取结果。
package cache

import (
	"context"
	"fmt"
	"time"

	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/guard"
)

// ResultCache 提取结果缓存，实现必须可并发使用。
type ResultCache interface {
	// Get 未命中时返回 (nil, false, nil)。
	Get(ctx context.Context, key string) (*domain.ExtractionResult, bool, error)
	Put(ctx context.Context, key string, result *domain.ExtractionResult) error
}

// Bucket 返回 floor(now / window)。
func Bucket(now time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = guard.DefaultFreshnessWindow
	}
	return now.UnixNano() / int64(window)
}

// KeyFor 生成缓存键；同一时间桶内同一邮箱与 Flavor 得到相同的键。
func KeyFor(flavor domain.Flavor, email string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%s:%d", flavor, guard.NormalizeEmail(email), Bucket(now, window))
}

// TTLUntilRollover 返回距离当前时间桶结束的时长，用作条目的硬过期时间。
func TTLUntilRollover(now time.Time, window time.Duration) time.Duration {
	if window <= 0 {
		window = guard.DefaultFreshnessWindow
	}
	end := time.Unix(0, (Bucket(now, window)+1)*int64(window))
	return end.Sub(now)
}

func clone(r *domain.ExtractionResult) *domain.ExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
