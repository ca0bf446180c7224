package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

// setRequired 设置最小可用配置
func setRequired(t *testing.T) {
	t.Setenv("MAILCODE_JWT_SECRET", testSecret)
	t.Setenv("MAILCODE_MAIL_TRANSPORT", "eml")
	t.Setenv("MAILCODE_MAIL_EML_DIR", t.TempDir())
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 15*time.Minute, cfg.Retrieval.FreshnessWindow)
		assert.Equal(t, []string{"netflix.com", "netflix.net", "netflix.app"}, cfg.Retrieval.ResetLinkSenders)
		assert.Equal(t, []string{"netflix.com"}, cfg.Retrieval.SignInCodeSenders)
		assert.Equal(t, 1, cfg.Retrieval.SignInCodeMax)
		assert.Equal(t, 15, cfg.RateLimit.Requests)
		assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Equal(t, 15, cfg.RateLimit.AuthRequests)
		assert.Equal(t, 15*time.Minute, cfg.RateLimit.AuthWindow)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, "file", cfg.Database.Type)
		assert.Equal(t, "./data/accessCodes.json", cfg.Database.FilePath)
		assert.Equal(t, "mailcode", cfg.JWT.Issuer)
		assert.Equal(t, "@every 1h", cfg.Access.SweepSchedule)
		assert.Equal(t, 24*time.Hour, cfg.Access.SessionTTL)
		assert.Equal(t, uint32(5), cfg.Gmail.BreakerFailures)
		assert.False(t, cfg.UsesRedis())
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MAILCODE_SERVER_PORT", "9090")
		t.Setenv("MAILCODE_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("MAILCODE_RETRIEVAL_FRESHNESS_WINDOW", "10m")
		t.Setenv("MAILCODE_RETRIEVAL_HOUSEHOLD_SENDERS", "Netflix.com")
		t.Setenv("MAILCODE_RATELIMIT_BACKEND", "redis")
		t.Setenv("MAILCODE_RATELIMIT_REQUESTS", "30")
		t.Setenv("MAILCODE_RATELIMIT_AUTH_REQUESTS", "5")
		t.Setenv("MAILCODE_ACCESS_REQUIRE_SESSION", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, 10*time.Minute, cfg.Retrieval.FreshnessWindow)
		assert.Equal(t, []string{"netflix.com"}, cfg.Retrieval.HouseholdSenders)
		assert.Equal(t, 30, cfg.RateLimit.Requests)
		assert.Equal(t, 5, cfg.RateLimit.AuthRequests)
		assert.True(t, cfg.Access.RequireSession)
		assert.True(t, cfg.UsesRedis())
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "默认 JWT 密钥",
			env:  map[string]string{"MAILCODE_JWT_SECRET": "change-me-in-production"},
			want: "default value",
		},
		{
			name: "JWT 密钥过短",
			env:  map[string]string{"MAILCODE_JWT_SECRET": "short"},
			want: "at least 32 characters",
		},
		{
			name: "缺少 Gmail 凭据",
			env:  map[string]string{"MAILCODE_MAIL_TRANSPORT": "gmail"},
			want: "gmail.client_id",
		},
		{
			name: "未知传输方式",
			env:  map[string]string{"MAILCODE_MAIL_TRANSPORT": "imap"},
			want: "unsupported mail.transport",
		},
		{
			name: "非法新鲜度窗口",
			env:  map[string]string{"MAILCODE_RETRIEVAL_FRESHNESS_WINDOW": "0s"},
			want: "freshness_window",
		},
		{
			name: "数据库缺少 DSN",
			env:  map[string]string{"MAILCODE_DATABASE_TYPE": "postgres"},
			want: "database.dsn",
		},
		{
			name: "未知缓存后端",
			env:  map[string]string{"MAILCODE_CACHE_BACKEND": "memcached"},
			want: "cache.backend",
		},
		{
			name: "非法认证限流",
			env:  map[string]string{"MAILCODE_RATELIMIT_AUTH_REQUESTS": "0"},
			want: "ratelimit.auth_requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_GmailCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("MAILCODE_MAIL_TRANSPORT", "gmail")
	t.Setenv("MAILCODE_GMAIL_CLIENT_ID", "id")
	t.Setenv("MAILCODE_GMAIL_CLIENT_SECRET", "secret")
	t.Setenv("MAILCODE_GMAIL_REFRESH_TOKEN", "refresh")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "me", cfg.Gmail.User)
	assert.Equal(t, 10*time.Second, cfg.Gmail.Timeout)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b ,"))
	assert.Empty(t, parseList(""))
	assert.Equal(t, []string{"x.com"}, parseDomains("X.COM"))
}
