package domain

import "errors"

// 邮件检索流程的错误分类，传输层通过 errors.Is 映射为 HTTP 状态码。
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrRateLimited           = errors.New("rate limited")
	ErrUnauthorizedRecipient = errors.New("email was not sent to this address")
	ErrNotFound              = errors.New("no matching email found")
	ErrLinkNotFound          = errors.New("link not found in email")
	ErrCodeNotFound          = errors.New("code not found in email")
	ErrExpired               = errors.New("email is older than the freshness window")
	ErrNoBody                = errors.New("email body not found")
	ErrTransport             = errors.New("mail transport error")
)

// 访问码错误
var (
	ErrAccessCodeNotFound = errors.New("access code not found")
	ErrAccessCodeExists   = errors.New("access code already exists")
	ErrInvalidExpiry      = errors.New("valid expiry days (>=1) required")
)

// IsNotFound 判断错误是否属于"未找到"一族（邮件、正文、链接、验证码）。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoBody) ||
		errors.Is(err, ErrLinkNotFound) ||
		errors.Is(err, ErrCodeNotFound)
}
