// Package storage 定义访问码持久化接口，具体实现位于子包。
package storage

import (
	"context"
	"time"

	"mailcode/backend/internal/domain"
)

// AccessCodeStore 访问码存取操作。
//
// 读取操作不会返回在 now 时刻已过期的记录；
// 未找到时返回 domain.ErrAccessCodeNotFound，重复 code 返回 domain.ErrAccessCodeExists。
type AccessCodeStore interface {
	CreateAccessCode(ctx context.Context, code *domain.AccessCode) error
	GetAccessCodeByCode(ctx context.Context, code string, now time.Time) (*domain.AccessCode, error)
	ListAccessCodes(ctx context.Context, now time.Time) ([]*domain.AccessCode, error) // 按 ExpiresAt 升序
	MarkAccessCodeUsed(ctx context.Context, id string) error
	DeleteAccessCode(ctx context.Context, id string) error
	DeleteExpiredAccessCodes(ctx context.Context, now time.Time) (int, error)
}

// HealthChecker 可选实现，用于就绪检查。
type HealthChecker interface {
	Health(ctx context.Context) error
}
