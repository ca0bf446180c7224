package ratelimit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestMemoryLimiter_Budget(t *testing.T) {
	start := time.Unix(1_700_000_040, 0) // 窗口起点
	clock := &fakeClock{t: start}
	l := NewMemoryLimiter(15, time.Minute, clock.Now)
	defer l.Close()
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		clock.Set(start.Add(time.Duration(i) * time.Second))
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 15-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "16th request is rejected")
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, start.Add(time.Minute), d.ResetAt)
	assert.Equal(t, 45*time.Second, d.RetryAfter(clock.Now()))

	t.Run("other identities are independent", func(t *testing.T) {
		d, _ := l.Allow(ctx, "10.0.0.2")
		assert.True(t, d.Allowed)
	})

	t.Run("next window resets", func(t *testing.T) {
		clock.Set(start.Add(time.Minute))
		d, _ := l.Allow(ctx, "10.0.0.1")
		assert.True(t, d.Allowed)
		assert.Equal(t, 14, d.Remaining)
	})
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_040, 0)}
	l := NewMemoryLimiter(15, time.Minute, clock.Now)
	defer l.Close()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Allow(context.Background(), "ip"); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(15), allowed.Load())
}

func TestNewMemoryLimiter_Defaults(t *testing.T) {
	l := NewMemoryLimiter(0, 0, nil)
	defer l.Close()
	assert.Equal(t, DefaultLimit, l.limit)
	assert.Equal(t, DefaultWindow, l.window)
}

// 需要真实 Redis：MAILCODE_TEST_REDIS_ADDR=localhost:6379
func TestRedisLimiter_Integration(t *testing.T) {
	addr := os.Getenv("MAILCODE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MAILCODE_TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	clock := &fakeClock{t: time.Unix(1_700_000_040, 0)}
	prefix := fmt.Sprintf("mailcode:test:%d:", time.Now().UnixNano())
	l := NewRedisLimiter(client, prefix, 3, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	clock.Set(clock.Now().Add(time.Minute))
	d, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
