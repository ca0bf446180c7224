// Package auth 管理员口令校验与令牌签发。
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mailcode/backend/internal/auth/jwt"
)

var (
	// ErrPasswordRequired 未提供管理员口令
	ErrPasswordRequired = errors.New("admin password required")
	// ErrInvalidPassword 管理员口令错误
	ErrInvalidPassword = errors.New("invalid admin password")
	// ErrAdminDisabled 未配置管理员口令
	ErrAdminDisabled = errors.New("admin access is not configured")
)

// AdminAuthenticator 管理员认证
//
// 配置的口令可以是 bcrypt 哈希（$2a$/$2b$/$2y$ 前缀）或明文。
type AdminAuthenticator struct {
	secret   []byte
	isHash   bool
	tokens   *jwt.Manager
	tokenTTL time.Duration
}

// NewAdminAuthenticator 创建管理员认证器
func NewAdminAuthenticator(password string, tokens *jwt.Manager, tokenTTL time.Duration) *AdminAuthenticator {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AdminAuthenticator{
		secret:   []byte(password),
		isHash:   IsBcryptHash(password),
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

// CheckPassword 校验管理员口令
func (a *AdminAuthenticator) CheckPassword(password string) error {
	if len(a.secret) == 0 {
		return ErrAdminDisabled
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if a.isHash {
		if err := bcrypt.CompareHashAndPassword(a.secret, []byte(password)); err != nil {
			return ErrInvalidPassword
		}
		return nil
	}
	if subtle.ConstantTimeCompare(a.secret, []byte(password)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// Login 校验口令并签发管理员令牌
func (a *AdminAuthenticator) Login(password string) (string, time.Time, error) {
	if err := a.CheckPassword(password); err != nil {
		return "", time.Time{}, err
	}
	return a.tokens.Issue(jwt.RoleAdmin, "admin", a.tokenTTL)
}

// ValidateToken 校验管理员令牌
func (a *AdminAuthenticator) ValidateToken(token string) error {
	_, err := a.tokens.Validate(token, jwt.RoleAdmin)
	return err
}

// HashPassword 生成 bcrypt 哈希，供配置管理员口令使用
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IsBcryptHash 判断字符串是否为 bcrypt 哈希
func IsBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
