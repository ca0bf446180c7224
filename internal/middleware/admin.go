package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"mailcode/backend/internal/auth"
)

// adminPasswordBody 兼容旧客户端：口令放在请求体中
type adminPasswordBody struct {
	AdminPassword string `json:"adminPassword"`
}

// AdminAuth 管理员权限中间件
type AdminAuth struct {
	auth *auth.AdminAuthenticator
	log  *zap.Logger
}

// NewAdminAuth 创建管理员权限中间件
func NewAdminAuth(authenticator *auth.AdminAuthenticator, log *zap.Logger) *AdminAuth {
	return &AdminAuth{auth: authenticator, log: log}
}

// RequireAdmin 接受 Bearer 管理员令牌，或请求体中的 adminPassword
//
// 请求体通过 ShouldBindBodyWith 缓存，后续处理器需用同样方式读取。
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if err := a.auth.ValidateToken(token); err != nil {
				a.log.Warn("invalid admin token", zap.String("ip", c.ClientIP()), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Set(ContextKeyRole, "admin")
			c.Next()
			return
		}

		var body adminPasswordBody
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			_ = c.ShouldBindBodyWith(&body, binding.JSON)
		}

		err := a.auth.CheckPassword(body.AdminPassword)
		switch {
		case err == nil:
			c.Set(ContextKeyRole, "admin")
			c.Next()
		case errors.Is(err, auth.ErrPasswordRequired):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Admin password required"})
		case errors.Is(err, auth.ErrAdminDisabled):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access is not configured"})
		default:
			a.log.Warn("invalid admin password", zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid admin password"})
		}
	}
}
