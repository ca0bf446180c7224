// Package scheduler 基于 cron 表达式运行后台维护任务。
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 定时任务
type Job func(ctx context.Context) error

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	log    *zap.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	rootCtx context.Context
}

// New 创建调度器，任务 panic 会被恢复并记录
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log: log.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		log:     log,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		rootCtx: context.Background(),
	}
}

// Add 注册任务；expr 支持标准五段式与 @every、@hourly 等描述符
func (s *Scheduler) Add(name, expr string, job Job) error {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", expr, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = job
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		_ = s.execute(s.context(), name, job)
	}))
	s.log.Info("job scheduled", zap.String("job", name), zap.String("schedule", expr))
	return nil
}

// RunNow 立即同步执行一次任务
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.execute(ctx, name, job)
}

// Next 返回任务的下一次执行时间，调度器未启动时为零值
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	id, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run 启动调度并阻塞至 ctx 取消，返回前等待正在执行的任务结束
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.rootCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootCtx
}

func (s *Scheduler) execute(ctx context.Context, name string, job Job) error {
	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.log.Error("job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.log.Debug("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger 将 cron 内部日志转发到 zap
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
