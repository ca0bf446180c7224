package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidCode      = errors.New("access code must be 4-64 letters, digits, '-' or '_'")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253

	MinAccessCodeLength = 4
	MaxAccessCodeLength = 64
)

var (
	// 域名验证（支持子域名，要求至少一个点）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

	accessCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// EmailValidator 校验调用方提交的收件人地址。
//
// 与注册邮箱不同，这里必须接受 Gmail 常见的 "+tag"、短前缀等写法，
// 只拒绝无法作为单一裸地址解析的输入。
type EmailValidator struct{}

// NewEmailValidator 创建邮箱验证器
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{}
}

// ValidateEmail 完整验证邮箱地址，返回具体的错误类型。
func (v *EmailValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	// 只接受裸地址，拒绝 "Name <addr>" 形式和多个地址
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || !strings.EqualFold(addr.Address, email) {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	localPart, domain := email[:at], email[at+1:]
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	return v.ValidateDomain(domain)
}

// ValidateDomain 验证域名
func (v *EmailValidator) ValidateDomain(domain string) error {
	if domain == "" {
		return ErrInvalidDomain
	}
	if len(domain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateAccessCode 校验管理员手工指定的访问码格式。
func ValidateAccessCode(code string) error {
	if len(code) < MinAccessCodeLength || len(code) > MaxAccessCodeLength {
		return ErrInvalidCode
	}
	if !accessCodeRegex.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}
