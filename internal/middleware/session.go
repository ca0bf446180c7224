package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上下文键
const (
	ContextKeyRole    = "role"
	ContextKeySession = "session"
)

// SessionValidator 校验会话令牌
type SessionValidator interface {
	ValidateSession(token string) error
}

// RequireSession 要求访问码会话令牌；enabled 为 false 时直接放行
func RequireSession(validator SessionValidator, enabled bool, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access code required"})
			return
		}
		if err := validator.ValidateSession(token); err != nil {
			log.Warn("invalid session token", zap.String("ip", c.ClientIP()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(ContextKeySession, true)
		c.Next()
	}
}

// bearerToken 从 Authorization 头或 access_token cookie 提取令牌
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	return ""
}
