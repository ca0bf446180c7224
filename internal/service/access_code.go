package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailcode/backend/internal/auth/jwt"
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/storage"
)

const (
	generatedCodeLength = 8
	generateAttempts    = 5
)

var codeAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// AccessCodeConfig 访问码服务参数。
type AccessCodeConfig struct {
	// SingleUse 为 true 时校验成功即标记为已使用
	SingleUse bool
	// SessionTTL 会话令牌的最长有效期，实际有效期不超过访问码剩余时间
	SessionTTL time.Duration
}

// AccessCodeService 封装访问码的签发、校验与清理。
type AccessCodeService struct {
	store  storage.AccessCodeStore
	tokens *jwt.Manager
	cfg    AccessCodeConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAccessCodeService 创建访问码服务；tokens 为 nil 时校验不签发会话令牌。
func NewAccessCodeService(store storage.AccessCodeStore, tokens *jwt.Manager, cfg AccessCodeConfig, log *zap.Logger) *AccessCodeService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AccessCodeService{
		store:  store,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccessCodeInput 定义创建访问码所需的输入。
type CreateAccessCodeInput struct {
	Code       string // 为空时自动生成
	ExpiryDays int
}

// Create 创建访问码。
func (s *AccessCodeService) Create(ctx context.Context, input CreateAccessCodeInput) (*domain.AccessCode, error) {
	if input.ExpiryDays < 1 {
		return nil, domain.ErrInvalidExpiry
	}

	custom := strings.TrimSpace(input.Code)
	if custom != "" {
		if err := domain.ValidateAccessCode(custom); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return s.insert(ctx, custom, input.ExpiryDays)
	}

	for attempt := 0; attempt < generateAttempts; attempt++ {
		code, err := generateCode(generatedCodeLength)
		if err != nil {
			return nil, err
		}
		created, err := s.insert(ctx, code, input.ExpiryDays)
		if errors.Is(err, domain.ErrAccessCodeExists) {
			continue
		}
		return created, err
	}
	return nil, fmt.Errorf("failed to generate unique access code: %w", domain.ErrAccessCodeExists)
}

func (s *AccessCodeService) insert(ctx context.Context, code string, days int) (*domain.AccessCode, error) {
	now := s.now()
	ac := &domain.AccessCode{
		ID:         uuid.NewString(),
		Code:       code,
		ExpiryDays: days,
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, days),
	}
	if err := s.store.CreateAccessCode(ctx, ac); err != nil {
		return nil, err
	}

	s.log.Info("access code created",
		zap.String("id", ac.ID),
		zap.Time("expires_at", ac.ExpiresAt),
	)
	return ac, nil
}

// Session 访问码校验成功后签发的会话。
type Session struct {
	Code      *domain.AccessCode
	Token     string
	ExpiresAt time.Time
}

// Validate 校验访问码；未知、过期或已使用均返回 domain.ErrAccessCodeNotFound。
func (s *AccessCodeService) Validate(ctx context.Context, code string) (*Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: access code is required", domain.ErrInvalidInput)
	}

	now := s.now()
	ac, err := s.store.GetAccessCodeByCode(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if !ac.Usable(now) {
		return nil, domain.ErrAccessCodeNotFound
	}

	if s.cfg.SingleUse {
		if err := s.store.MarkAccessCodeUsed(ctx, ac.ID); err != nil {
			return nil, err
		}
		ac.IsUsed = true
	}

	session := &Session{Code: ac}
	if s.tokens == nil {
		return session, nil
	}

	ttl := s.cfg.SessionTTL
	if remaining := ac.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	token, expiresAt, err := s.tokens.Issue(jwt.RoleSession, ac.ID, ttl)
	if err != nil {
		return nil, err
	}
	session.Token = token
	session.ExpiresAt = expiresAt
	return session, nil
}

// ValidateSession 校验会话令牌。
func (s *AccessCodeService) ValidateSession(token string) error {
	if s.tokens == nil {
		return jwt.ErrInvalidToken
	}
	_, err := s.tokens.Validate(token, jwt.RoleSession, jwt.RoleAdmin)
	return err
}

// List 返回未过期的访问码，按过期时间升序。
func (s *AccessCodeService) List(ctx context.Context) ([]*domain.AccessCode, error) {
	return s.store.ListAccessCodes(ctx, s.now())
}

// Delete 删除访问码。
func (s *AccessCodeService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	if err := s.store.DeleteAccessCode(ctx, id); err != nil {
		return err
	}
	s.log.Info("access code deleted", zap.String("id", id))
	return nil
}

// Sweep 删除所有已过期的访问码，返回删除数量。
func (s *AccessCodeService) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredAccessCodes(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired access codes removed", zap.Int("count", n))
	}
	return n, nil
}

func generateCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate access code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
