package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter 进程内固定窗口计数器
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter

	stop chan struct{}
	once sync.Once
}

type counter struct {
	start time.Time
	count int64
}

// NewMemoryLimiter 创建内存限流器
//
// 参数:
//   - limit: 每个窗口允许的请求数
//   - window: 窗口长度
//   - now: 时钟，nil 时使用 time.Now
func NewMemoryLimiter(limit int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	l := &MemoryLimiter{
		limit:    limit,
		window:   window,
		now:      now,
		counters: make(map[string]*counter),
		stop:     make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow 计数并判定是否放行
func (l *MemoryLimiter) Allow(_ context.Context, identity string) (Decision, error) {
	now := l.now()
	start := windowStart(now, l.window)

	l.mu.Lock()
	c, ok := l.counters[identity]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start}
		l.counters[identity] = c
	}
	c.count++
	count := c.count
	l.mu.Unlock()

	return decide(count, l.limit, start.Add(l.window)), nil
}

// Close 停止后台清理。
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// cleanupLoop 定期清理已结束窗口的计数器
func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			start := windowStart(l.now(), l.window)
			l.mu.Lock()
			for id, c := range l.counters {
				if c.start.Before(start) {
					delete(l.counters, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
