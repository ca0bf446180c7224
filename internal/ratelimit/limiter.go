// Package ratelimit 按客户端标识进行固定窗口限流。
package ratelimit

import (
	"context"
	"time"
)

// 默认预算：每 60 秒 15 次请求。
const (
	DefaultLimit  = 15
	DefaultWindow = 60 * time.Second
)

// Decision 一次限流判定的结果。
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter 距离窗口重置的时长。
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter 限流器，实现必须可并发使用。
type Limiter interface {
	Allow(ctx context.Context, identity string) (Decision, error)
}

// windowStart 返回 now 所在固定窗口的起始时间。
func windowStart(now time.Time, window time.Duration) time.Time {
	return time.Unix(0, now.UnixNano()/int64(window)*int64(window))
}

func decide(count int64, limit int, resetAt time.Time) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
