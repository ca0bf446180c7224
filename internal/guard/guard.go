// Package guard 校验邮件的收件人归属与时效。
package guard

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"mailcode/backend/internal/domain"
)

// DefaultFreshnessWindow 邮件可用于提取的最大时长。
const DefaultFreshnessWindow = 15 * time.Minute

var angleAddr = regexp.MustCompile(`<([^>]+)>`)

// NormalizeEmail 去除首尾空白并转为小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BareAddress 按 RFC 5322 解析 `"Name" <addr>` 并返回规范化地址。
//
// 解析失败时取最后一组尖括号；显示名中的尖括号不会被当作地址。
func BareAddress(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return NormalizeEmail(addr.Address)
	}
	if m := angleAddr.FindAllStringSubmatch(header, -1); len(m) > 0 {
		return NormalizeEmail(m[len(m)-1][1])
	}
	return NormalizeEmail(header)
}

// CheckRecipient 校验邮件 To 头部是否与调用方提供的邮箱一致。
func CheckRecipient(toHeader, email string) error {
	want := NormalizeEmail(email)
	got := BareAddress(toHeader)
	if want == "" || got != want {
		return fmt.Errorf("recipient %q: %w", got, domain.ErrUnauthorizedRecipient)
	}
	return nil
}

// CheckFreshness 当 now - sentAt 超过 window 时返回 ErrExpired。
func CheckFreshness(sentAt, now time.Time, window time.Duration) error {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if age := now.Sub(sentAt); age > window {
		return fmt.Errorf("sent %s ago: %w", age.Truncate(time.Second), domain.ErrExpired)
	}
	return nil
}
