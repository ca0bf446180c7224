package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// SweepJobName 过期访问码清理任务名
const SweepJobName = "access-code-sweep"

// Sweeper 删除已过期的访问码
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepRecorder 记录清理数量，可为 nil
type SweepRecorder interface {
	RecordAccessCodesSwept(n int)
}

// SweepJob 返回清理过期访问码的任务
func SweepJob(sweeper Sweeper, recorder SweepRecorder, log *zap.Logger) Job {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) error {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		if recorder != nil {
			recorder.RecordAccessCodesSwept(n)
		}
		log.Debug("access code sweep finished", zap.Int("removed", n))
		return nil
	}
}
