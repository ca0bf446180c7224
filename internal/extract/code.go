package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"mailcode/backend/internal/domain"
)

var (
	codePattern     = regexp.MustCompile(`\b\d{4,6}\b`)
	greetingPattern = regexp.MustCompile(`\bHi\s+([\p{L}\p{N}_]+)`)

	stripPolicy = bluemonday.StrictPolicy()
)

// DefaultGreeting 正文中找不到称呼时使用。
const DefaultGreeting = "Hello,"

// Code 返回文本中第一个独立的 4 到 6 位数字。
func Code(text string) (string, error) {
	if m := codePattern.FindString(text); m != "" {
		return m, nil
	}
	return "", domain.ErrCodeNotFound
}

// StripHTML 将 HTML 转为纯文本，块级标签之间保留空白。
func StripHTML(body string) string {
	text := stripPolicy.Sanitize(strings.ReplaceAll(body, "<", " <"))
	return collapse(html.UnescapeString(text))
}

// Greeting 返回 "Hi <Name>," 形式的称呼，找不到时返回 DefaultGreeting。
func Greeting(text string) string {
	if m := greetingPattern.FindStringSubmatch(text); len(m) == 2 {
		return "Hi " + m[1] + ","
	}
	return DefaultGreeting
}
