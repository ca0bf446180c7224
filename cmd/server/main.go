package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailcode/backend/internal/auth"
	jwtpkg "mailcode/backend/internal/auth/jwt"
	"mailcode/backend/internal/bootstrap"
	"mailcode/backend/internal/config"
	"mailcode/backend/internal/health"
	"mailcode/backend/internal/logger"
	"mailcode/backend/internal/mailfetch"
	"mailcode/backend/internal/mailquery"
	"mailcode/backend/internal/monitoring"
	"mailcode/backend/internal/scheduler"
	"mailcode/backend/internal/service"
	"mailcode/backend/internal/storage"
	redisclient "mailcode/backend/internal/storage/redis"
	httptransport "mailcode/backend/internal/transport/http"
)

const version = "1.0.0"

// main 启动 HTTP API 与后台清理任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		Compress:    true,
		Service:     "mailcode",
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailcode server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.String("transport", cfg.Mail.Transport),
		zap.Duration("freshness_window", cfg.Retrieval.FreshnessWindow),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	metrics := monitoring.NewMetrics()
	checker := health.NewChecker(log, version)

	// 初始化存储层
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer closeStore()
	if hc, ok := store.(storage.HealthChecker); ok {
		checker.AddReadinessCheck("storage", hc.Health)
	}

	var redis *redisclient.Client
	if cfg.UsesRedis() {
		redis, err = bootstrap.OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redis.Close()
		checker.AddReadinessCheck("redis", redis.Ping)
	}

	resultCache, closeCache, err := bootstrap.BuildCache(cfg, redis, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	limiter, closeLimiter, err := bootstrap.BuildLimiter(cfg, redis, nil)
	if err != nil {
		return err
	}
	defer closeLimiter()

	authLimiter, closeAuthLimiter, err := bootstrap.BuildAuthLimiter(cfg, redis, nil)
	if err != nil {
		return err
	}
	defer closeAuthLimiter()

	transport, err := bootstrap.BuildTransport(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize mail transport: %w", err)
	}
	if transport.Ping != nil {
		checker.AddReadinessCheck("mail", transport.Ping)
	}

	observer := &transportObserver{metrics: metrics, breakerState: transport.BreakerState}

	// 初始化服务层
	retrieval := service.NewRetrievalService(service.RetrievalDeps{
		Builder:  mailquery.NewBuilder(bootstrap.QueryOptions(cfg.Retrieval)),
		Fetcher:  mailfetch.NewFetcher(transport, observer, log.Named("fetch")),
		Cache:    resultCache,
		Limiter:  limiter,
		Observer: metrics,
		Logger:   log.Named("retrieval"),
	}, service.RetrievalConfig{
		FreshnessWindow: cfg.Retrieval.FreshnessWindow,
		FilterSentAfter: cfg.Retrieval.FilterSentAfter,
	})

	tokens := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	codes := service.NewAccessCodeService(store, tokens, service.AccessCodeConfig{
		SingleUse:  cfg.Access.SingleUse,
		SessionTTL: cfg.Access.SessionTTL,
	}, log.Named("access"))
	admin := auth.NewAdminAuthenticator(cfg.Admin.Password, tokens, cfg.Admin.TokenTTL)
	if cfg.Admin.Password == "" {
		log.Warn("admin password not configured, admin endpoints are disabled")
	}

	sched := scheduler.New(log.Named("scheduler"))
	if err := sched.Add(scheduler.SweepJobName, cfg.Access.SweepSchedule, scheduler.SweepJob(codes, metrics, log)); err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		Retrieval:   retrieval,
		AccessCodes: codes,
		Admin:       admin,
		AuthLimiter: authLimiter,
		Metrics:     metrics,
		Health:      checker,
		Logger:      log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期访问码
	group.Go(func() error {
		return sched.Run(groupCtx)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down HTTP server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		return nil
	})

	return group.Wait()
}

// transportObserver 记录上游调用并同步熔断器状态
type transportObserver struct {
	metrics      *monitoring.Metrics
	breakerState func() string
}

func (o *transportObserver) ObserveTransportCall(op string, err error, d time.Duration) {
	o.metrics.ObserveTransportCall(op, err, d)
	if o.breakerState != nil {
		o.metrics.SetCircuitOpen(o.breakerState() == "open")
	}
}
