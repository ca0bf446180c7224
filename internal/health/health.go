// Package health 聚合存储、Redis 与上游邮件服务的健康检查。
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc 单项检查
type CheckFunc func(ctx context.Context) error

// CheckResult 单项检查结果
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report 健康报告
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version,omitempty"`
	Checks    []CheckResult `json:"checks"`
}

// Checker 健康检查器
type Checker struct {
	handler healthcheck.Handler
	logger  *zap.Logger
	timeout time.Duration
	version string
	started time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker 创建健康检查器
func NewChecker(logger *zap.Logger, version string) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		handler: healthcheck.NewHandler(),
		logger:  logger,
		timeout: 3 * time.Second,
		version: version,
		started: time.Now(),
		checks:  make(map[string]CheckFunc),
	}

	// 协程泄漏视为不存活
	c.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	return c
}

// AddReadinessCheck 添加就绪检查（存储、Redis、Gmail）
func (c *Checker) AddReadinessCheck(name string, check CheckFunc) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()

	c.handler.AddReadinessCheck(name, healthcheck.Timeout(func() error {
		return check(context.Background())
	}, c.timeout))
}

// LiveHandler 存活探针
func (c *Checker) LiveHandler() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyHandler 就绪探针
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}

// Report 执行全部就绪检查并生成报告
func (c *Checker) Report(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(c.started).Truncate(time.Second).String(),
		Version:   c.version,
		Checks:    make([]CheckResult, 0, len(names)),
	}

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := checks[name](checkCtx)
		cancel()

		result := CheckResult{Name: name, Status: StatusHealthy, Duration: time.Since(start)}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			report.Status = StatusUnhealthy
			c.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		report.Checks = append(report.Checks, result)
	}

	return report
}
