// Package bootstrap 根据配置组装存储、缓存、限流与邮件传输。
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailcode/backend/internal/cache"
	"mailcode/backend/internal/config"
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/gmail"
	"mailcode/backend/internal/mailfetch"
	"mailcode/backend/internal/mailquery"
	"mailcode/backend/internal/ratelimit"
	"mailcode/backend/internal/storage"
	"mailcode/backend/internal/storage/filesystem"
	"mailcode/backend/internal/storage/memory"
	redisclient "mailcode/backend/internal/storage/redis"
	sqlstore "mailcode/backend/internal/storage/sql"
)

// Closer 释放资源
type Closer func()

func noop() {}

// OpenStore 按 database.type 打开访问码存储
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (storage.AccessCodeStore, Closer, error) {
	switch cfg.Type {
	case "", "file":
		store, err := filesystem.NewStore(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		log.Info("using file storage", zap.String("path", cfg.FilePath))
		return store, noop, nil
	case "memory":
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), noop, nil
	case "postgres", "mysql":
		store, err := sqlstore.NewStore(ctx, sqlstore.Config{
			Driver:          cfg.Type,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			AutoMigrate:     cfg.AutoMigrate,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using database storage", zap.String("type", cfg.Type))
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close database", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// OpenRedis 连接 Redis
func OpenRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redisclient.Client, error) {
	return redisclient.New(ctx, redisclient.Options{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, log)
}

// Transport 邮件传输及其可选的健康检查
type Transport struct {
	mailfetch.Transport
	Ping         func(ctx context.Context) error // 可为 nil
	BreakerState func() string                   // 可为 nil
}

// BuildTransport 按 mail.transport 创建 Gmail 或 .eml 目录传输
func BuildTransport(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Transport, error) {
	switch cfg.Mail.Transport {
	case "", "gmail":
		client, err := gmail.New(ctx, gmail.Config{
			ClientID:        cfg.Gmail.ClientID,
			ClientSecret:    cfg.Gmail.ClientSecret,
			RedirectURL:     cfg.Gmail.RedirectURI,
			RefreshToken:    cfg.Gmail.RefreshToken,
			User:            cfg.Gmail.User,
			Timeout:         cfg.Gmail.Timeout,
			QPS:             cfg.Gmail.QPS,
			Burst:           cfg.Gmail.Burst,
			BreakerFailures: cfg.Gmail.BreakerFailures,
			BreakerTimeout:  cfg.Gmail.BreakerTimeout,
		}, log.Named("gmail"))
		if err != nil {
			return nil, err
		}
		return &Transport{Transport: client, Ping: client.Ping, BreakerState: client.BreakerState}, nil
	case "eml":
		dir, err := gmail.NewEMLDir(cfg.Mail.EMLDir, log.Named("eml"))
		if err != nil {
			return nil, err
		}
		return &Transport{Transport: dir}, nil
	default:
		return nil, fmt.Errorf("unsupported mail transport: %s", cfg.Mail.Transport)
	}
}

// QueryOptions 将检索配置转换为查询构建参数
func QueryOptions(cfg config.RetrievalConfig) mailquery.Options {
	opts := mailquery.DefaultOptions()
	setSenders := func(f domain.Flavor, senders []string) {
		if len(senders) > 0 {
			opts.SenderDomains[f] = senders
		}
	}
	setMax := func(f domain.Flavor, n int) {
		if n > 0 {
			opts.MaxResults[f] = n
		}
	}
	setSenders(domain.FlavorResetLink, cfg.ResetLinkSenders)
	setSenders(domain.FlavorHousehold, cfg.HouseholdSenders)
	setSenders(domain.FlavorSignInCode, cfg.SignInCodeSenders)
	setMax(domain.FlavorResetLink, cfg.ResetLinkMax)
	setMax(domain.FlavorHousehold, cfg.HouseholdMax)
	setMax(domain.FlavorSignInCode, cfg.SignInCodeMax)
	return opts
}

// BuildCache 按 cache.backend 创建结果缓存；"none" 返回 nil
func BuildCache(cfg *config.Config, redis *redisclient.Client, now func() time.Time) (cache.ResultCache, Closer, error) {
	window := cfg.Retrieval.FreshnessWindow
	switch cfg.Cache.Backend {
	case "none":
		return nil, noop, nil
	case "", "memory":
		c := cache.NewLocalCache(cfg.Cache.MaxEntries, window, now)
		return c, c.Close, nil
	case "redis":
		if redis == nil {
			return nil, nil, fmt.Errorf("cache backend redis requires a redis connection")
		}
		return cache.NewRedisCache(redis.Client(), cfg.Redis.Prefix+"result:", window, now), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// BuildLimiter 按 ratelimit.backend 创建邮件接口限流器
func BuildLimiter(cfg *config.Config, redis *redisclient.Client, now func() time.Time) (ratelimit.Limiter, Closer, error) {
	rl := cfg.RateLimit
	return buildLimiter(rl.Backend, redis, cfg.Redis.Prefix+"ratelimit:", rl.Requests, rl.Window, now)
}

// BuildAuthLimiter 创建管理员登录与访问码校验的限流器，配额独立于邮件接口
func BuildAuthLimiter(cfg *config.Config, redis *redisclient.Client, now func() time.Time) (ratelimit.Limiter, Closer, error) {
	rl := cfg.RateLimit
	return buildLimiter(rl.Backend, redis, cfg.Redis.Prefix+"authlimit:", rl.AuthRequests, rl.AuthWindow, now)
}

func buildLimiter(backend string, redis *redisclient.Client, prefix string, limit int, window time.Duration, now func() time.Time) (ratelimit.Limiter, Closer, error) {
	switch backend {
	case "", "memory":
		l := ratelimit.NewMemoryLimiter(limit, window, now)
		return l, l.Close, nil
	case "redis":
		if redis == nil {
			return nil, nil, fmt.Errorf("rate limit backend redis requires a redis connection")
		}
		return ratelimit.NewRedisLimiter(redis.Client(), prefix, limit, window, now), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend: %s", backend)
	}
}
