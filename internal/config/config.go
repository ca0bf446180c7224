package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host            string        // 监听地址，默认 "0.0.0.0"
	Port            int           // 监听端口，默认 3000
	ShutdownTimeout time.Duration // 优雅关闭等待时间
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// GmailConfig 定义 Gmail API 访问凭据与上游保护参数
type GmailConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	RefreshToken    string
	User            string        // 邮箱用户，默认 "me"
	Timeout         time.Duration // 单次调用超时
	QPS             float64       // 客户端调用速率
	Burst           int
	BreakerFailures uint32        // 连续失败多少次后熔断
	BreakerTimeout  time.Duration // 熔断后多久进入半开
}

// MailConfig 定义邮件来源
type MailConfig struct {
	Transport string // "gmail" 或 "eml"
	EMLDir    string // Transport 为 eml 时读取的目录
}

// RetrievalConfig 定义检索流水线参数
type RetrievalConfig struct {
	FreshnessWindow   time.Duration // 邮件新鲜度窗口，默认 15 分钟
	FilterSentAfter   bool          // 在查询中附加 after: 条件
	ResetLinkSenders  []string
	HouseholdSenders  []string
	SignInCodeSenders []string
	ResetLinkMax      int
	HouseholdMax      int
	SignInCodeMax     int
}

// RateLimitConfig 定义限流配置
type RateLimitConfig struct {
	Backend  string        // "memory" 或 "redis"
	Requests int           // 每个窗口允许的请求数，默认 15
	Window   time.Duration // 窗口长度，默认 60 秒

	AuthRequests int           // 管理员登录与访问码校验每窗口允许的尝试次数，默认 15
	AuthWindow   time.Duration // 登录与校验限流窗口，默认 15 分钟
}

// CacheConfig 定义结果缓存配置
type CacheConfig struct {
	Backend    string // "memory"、"redis" 或 "none"
	MaxEntries int
}

// DatabaseConfig 定义访问码存储配置（支持文件、内存、MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string // 存储类型: "file"、"memory"、"mysql" 或 "postgres"
	DSN             string // 数据库连接字符串
	FilePath        string // Type 为 file 时的 JSON 文件路径
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig 定义 Redis 服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
	Prefix   string // 键前缀
}

// AdminConfig 定义管理员认证配置
type AdminConfig struct {
	Password string        // 明文或 bcrypt 哈希，留空禁用管理接口
	TokenTTL time.Duration // 管理员令牌有效期
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret string // JWT 签名密钥，必须至少 32 字符
	Issuer string // JWT 签发者标识，默认 "mailcode"
}

// AccessConfig 定义访问码与会话配置
type AccessConfig struct {
	RequireSession bool          // 邮件接口是否要求会话令牌
	SingleUse      bool          // 访问码校验后即失效
	SessionTTL     time.Duration // 会话令牌最长有效期
	SweepSchedule  string        // 过期访问码清理的 cron 表达式
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Log       LogConfig
	Gmail     GmailConfig
	Mail      MailConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Admin     AdminConfig
	JWT       JWTConfig
	Access    AccessConfig
}

// Load 从环境变量、config.yaml 和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. config.yaml（如果存在）
//  4. 默认值
//
// 环境变量前缀: MAILCODE_
// 例如: MAILCODE_SERVER_PORT, MAILCODE_GMAIL_REFRESH_TOKEN
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("mailcode")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	v.SetDefault("gmail.redirect_uri", "")
	v.SetDefault("gmail.user", "me")
	v.SetDefault("gmail.timeout", "10s")
	v.SetDefault("gmail.qps", 5)
	v.SetDefault("gmail.burst", 10)
	v.SetDefault("gmail.breaker_failures", 5)
	v.SetDefault("gmail.breaker_timeout", "30s")

	v.SetDefault("mail.transport", "gmail")
	v.SetDefault("mail.eml_dir", "./mail")

	v.SetDefault("retrieval.freshness_window", "15m")
	v.SetDefault("retrieval.filter_sent_after", false)
	v.SetDefault("retrieval.reset_link_senders", "netflix.com,netflix.net,netflix.app")
	v.SetDefault("retrieval.household_senders", "netflix.com,netflix.net,netflix.app")
	v.SetDefault("retrieval.sign_in_code_senders", "netflix.com")
	v.SetDefault("retrieval.reset_link_max", 3)
	v.SetDefault("retrieval.household_max", 3)
	v.SetDefault("retrieval.sign_in_code_max", 1)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.requests", 15)
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.auth_requests", 15)
	v.SetDefault("ratelimit.auth_window", "15m")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("database.type", "file")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.file_path", "./data/accessCodes.json")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mailcode:")

	v.SetDefault("admin.password", "")
	v.SetDefault("admin.token_ttl", "12h")

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "mailcode")

	v.SetDefault("access.require_session", false)
	v.SetDefault("access.single_use", false)
	v.SetDefault("access.session_ttl", "24h")
	v.SetDefault("access.sweep_schedule", "@every 1h")
}

func fromViper(v *viper.Viper) (*Config, error) {
	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Gmail: GmailConfig{
			ClientID:        v.GetString("gmail.client_id"),
			ClientSecret:    v.GetString("gmail.client_secret"),
			RedirectURI:     v.GetString("gmail.redirect_uri"),
			RefreshToken:    v.GetString("gmail.refresh_token"),
			User:            v.GetString("gmail.user"),
			Timeout:         v.GetDuration("gmail.timeout"),
			QPS:             v.GetFloat64("gmail.qps"),
			Burst:           v.GetInt("gmail.burst"),
			BreakerFailures: v.GetUint32("gmail.breaker_failures"),
			BreakerTimeout:  v.GetDuration("gmail.breaker_timeout"),
		},
		Mail: MailConfig{
			Transport: strings.ToLower(v.GetString("mail.transport")),
			EMLDir:    v.GetString("mail.eml_dir"),
		},
		Retrieval: RetrievalConfig{
			FreshnessWindow:   v.GetDuration("retrieval.freshness_window"),
			FilterSentAfter:   v.GetBool("retrieval.filter_sent_after"),
			ResetLinkSenders:  parseDomains(v.GetString("retrieval.reset_link_senders")),
			HouseholdSenders:  parseDomains(v.GetString("retrieval.household_senders")),
			SignInCodeSenders: parseDomains(v.GetString("retrieval.sign_in_code_senders")),
			ResetLinkMax:      v.GetInt("retrieval.reset_link_max"),
			HouseholdMax:      v.GetInt("retrieval.household_max"),
			SignInCodeMax:     v.GetInt("retrieval.sign_in_code_max"),
		},
		RateLimit: RateLimitConfig{
			Backend:  strings.ToLower(v.GetString("ratelimit.backend")),
			Requests: v.GetInt("ratelimit.requests"),
			Window:   v.GetDuration("ratelimit.window"),

			AuthRequests: v.GetInt("ratelimit.auth_requests"),
			AuthWindow:   v.GetDuration("ratelimit.auth_window"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(v.GetString("cache.backend")),
			MaxEntries: v.GetInt("cache.max_entries"),
		},
		Database: DatabaseConfig{
			Type:            strings.ToLower(v.GetString("database.type")),
			DSN:             v.GetString("database.dsn"),
			FilePath:        v.GetString("database.file_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Admin: AdminConfig{
			Password: v.GetString("admin.password"),
			TokenTTL: v.GetDuration("admin.token_ttl"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Access: AccessConfig{
			RequireSession: v.GetBool("access.require_session"),
			SingleUse:      v.GetBool("access.single_use"),
			SessionTTL:     v.GetDuration("access.session_ttl"),
			SweepSchedule:  v.GetString("access.sweep_schedule"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	// 安全检查：禁止使用默认的 JWT secret
	if c.JWT.Secret == "change-me-in-production" {
		return fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILCODE_JWT_SECRET environment variable")
	}
	// JWT secret 必须至少 32 字符
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	if c.Retrieval.FreshnessWindow <= 0 {
		return fmt.Errorf("retrieval.freshness_window must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.requests and ratelimit.window must be positive")
	}
	if c.RateLimit.AuthRequests <= 0 || c.RateLimit.AuthWindow <= 0 {
		return fmt.Errorf("ratelimit.auth_requests and ratelimit.auth_window must be positive")
	}

	switch c.Mail.Transport {
	case "gmail":
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("gmail.client_id, gmail.client_secret and gmail.refresh_token are required when mail.transport=gmail")
		}
	case "eml":
		if c.Mail.EMLDir == "" {
			return fmt.Errorf("mail.eml_dir is required when mail.transport=eml")
		}
	default:
		return fmt.Errorf("unsupported mail.transport %q", c.Mail.Transport)
	}

	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported ratelimit.backend %q", c.RateLimit.Backend)
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}

	switch c.Database.Type {
	case "file":
		if c.Database.FilePath == "" {
			return fmt.Errorf("database.file_path is required when database.type=file")
		}
	case "memory":
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when database.type=%s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	return nil
}

// UsesRedis 判断是否有组件依赖 Redis
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Backend == "redis" || c.Cache.Backend == "redis"
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 已存在的环境变量优先级更高，不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
