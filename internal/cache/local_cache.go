package cache

import (
	"context"
	"sync"
	"time"

	"mailcode/backend/internal/domain"
)

// LocalCache 进程内结果缓存
//
// 特点：
// - 读写由互斥锁保护，单键写入是原子的
// - 条目在所属时间桶结束时过期
// - 超出容量时优先淘汰最早过期的条目
type LocalCache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	maxSize int
	window  time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	value     *domain.ExtractionResult
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<=0 表示不限制
//   - window: 时间桶长度（新鲜度窗口）
//   - now: 时钟，nil 时使用 time.Now
func NewLocalCache(maxSize int, window time.Duration, now func() time.Time) *LocalCache {
	if now == nil {
		now = time.Now
	}
	c := &LocalCache{
		data:    make(map[string]*cacheEntry),
		maxSize: maxSize,
		window:  window,
		now:     now,
		stop:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Get 获取缓存值
func (c *LocalCache) Get(_ context.Context, key string) (*domain.ExtractionResult, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur == entry {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return clone(entry.value), true, nil
}

// Put 设置缓存值
func (c *LocalCache) Put(_ context.Context, key string, result *domain.ExtractionResult) error {
	if result == nil {
		return nil
	}
	now := c.now()
	entry := &cacheEntry{
		value:     clone(result),
		expiresAt: now.Add(TTLUntilRollover(now, c.window)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists && c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.evictLocked(now)
	}
	c.data[key] = entry
	return nil
}

// Len 当前条目数（含尚未清理的过期条目）。
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close 停止后台清理。
func (c *LocalCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictLocked 先清理过期条目，仍然满时淘汰最早过期的一个。
func (c *LocalCache) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.expiresAt
		}
	}
	if len(c.data) >= c.maxSize && oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for k, e := range c.data {
				if !now.Before(e.expiresAt) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
