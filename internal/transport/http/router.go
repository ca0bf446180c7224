package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailcode/backend/internal/auth"
	"mailcode/backend/internal/config"
	"mailcode/backend/internal/health"
	"mailcode/backend/internal/middleware"
	"mailcode/backend/internal/monitoring"
	"mailcode/backend/internal/ratelimit"
	"mailcode/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	Retrieval   *service.RetrievalService
	AccessCodes *service.AccessCodeService
	Admin       *auth.AdminAuthenticator
	AuthLimiter ratelimit.Limiter   // 登录与访问码校验限流，可为 nil
	Metrics     *monitoring.Metrics // 可为 nil
	Health      *health.Checker     // 可为 nil
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	var onPanic func()
	var onBlock func(string)
	var accessMetrics AccessMetrics
	if deps.Metrics != nil {
		onPanic = deps.Metrics.RecordPanic
		onBlock = deps.Metrics.RecordRateLimitBlock
		accessMetrics = deps.Metrics
	}

	router.Use(middleware.Recovery(log, onPanic))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	router.Use(gincors.New(corsConfig(deps.Config.CORS.AllowedOrigins)))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	registerHealth(router, deps)

	api := router.Group("/api")

	mail := NewMailHandler(deps.Retrieval, log, onBlock)
	mailRoutes := api.Group("")
	mailRoutes.Use(middleware.RequireSession(deps.AccessCodes, deps.Config.Access.RequireSession, log))
	{
		mailRoutes.POST("/email/request-link", mail.RequestLink)
		mailRoutes.POST("/latest-household-netflix-email", mail.Household)
		mailRoutes.POST("/netflix/request-code", mail.RequestCode)
	}

	admin := NewAdminHandler(deps.AccessCodes, deps.Admin, accessMetrics, log)
	adminRoutes := api.Group("/admin")
	{
		// 口令与访问码可被枚举，按 IP 限制尝试次数
		guarded := adminRoutes.Group("")
		if deps.AuthLimiter != nil {
			guarded.Use(middleware.RateLimit(deps.AuthLimiter, log, onBlock))
		}
		guarded.POST("/login", admin.Login)
		guarded.POST("/validate-code", admin.ValidateCode)

		protected := adminRoutes.Group("")
		protected.Use(middleware.NewAdminAuth(deps.Admin, log).RequireAdmin())
		protected.POST("/codes", admin.CreateCode)
		protected.GET("/codes", admin.ListCodes)
		protected.DELETE("/codes/:id", admin.DeleteCode)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "Not found")
	})

	return router
}

func corsConfig(origins []string) gincors.Config {
	cfg := gincors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Retry-After",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			cfg.AllowCredentials = false
			break
		}
	}
	return cfg
}

func registerHealth(router *gin.Engine, deps RouterDependencies) {
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}
	if deps.Health == nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		})
		return
	}

	router.GET("/health", func(c *gin.Context) {
		report := deps.Health.Report(c.Request.Context())
		status := http.StatusOK
		if report.Status != health.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})
	router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
}
