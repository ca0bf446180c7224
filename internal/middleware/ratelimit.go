package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailcode/backend/internal/ratelimit"
)

// SetRateLimitHeaders 写入 X-RateLimit-* 响应头；被拒绝时附带 Retry-After
func SetRateLimitHeaders(c *gin.Context, d ratelimit.Decision, now time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		secs := int(math.Ceil(d.RetryAfter(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}
}

// RateLimit 按客户端 IP 限流，后端异常时放行
func RateLimit(limiter ratelimit.Limiter, log *zap.Logger, onBlock func(endpoint string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		SetRateLimitHeaders(c, decision, time.Now())
		if !decision.Allowed {
			if onBlock != nil {
				onBlock(c.FullPath())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later.",
			})
			return
		}

		c.Next()
	}
}
