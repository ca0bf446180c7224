package domain

import (
	"mime"
	"net/textproto"
	"strings"
	"time"
)

// MIMEType 正文部分的内容类型，仅区分纯文本、HTML 与其他。
type MIMEType string

const (
	MIMEPlain MIMEType = "text/plain"
	MIMEHTML  MIMEType = "text/html"
	MIMEOther MIMEType = "other"
)

// ParseMIMEType 将 Content-Type 字符串（可带参数）归类为 MIMEType。
func ParseMIMEType(contentType string) MIMEType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	switch strings.ToLower(mediaType) {
	case string(MIMEPlain):
		return MIMEPlain
	case string(MIMEHTML):
		return MIMEHTML
	default:
		return MIMEOther
	}
}

// MailQuery 一次请求构建的邮箱搜索条件，构建后不再修改。
type MailQuery struct {
	SubjectTemplates []string
	SenderDomains    []string
	Recipient        string
	SentAfter        *time.Time
	MaxResults       int
}

// BodyPart MIME 部分树中的一个节点。
//
// Data 保持传输编码（base64，标准或 URL 安全字母表均可）。
type BodyPart struct {
	MIMEType MIMEType
	Charset  string
	Data     string
	Parts    []BodyPart
}

// MailMessage 一封完整获取到的邮件，仅在单次请求内存活。
type MailMessage struct {
	ID      string
	Headers map[string]string // 规范化的头部名称 -> 首次出现的值
	Parts   []BodyPart
	SentAt  time.Time
}

// Header 按名称（大小写不敏感）读取头部值。
func (m *MailMessage) Header(name string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	return m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// SetHeader 写入头部；同名头部只保留第一次出现的值。
func (m *MailMessage) SetHeader(name, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, exists := m.Headers[key]; exists {
		return
	}
	m.Headers[key] = value
}

// ExtractionResult 一次成功提取的结果，可被缓存。
type ExtractionResult struct {
	Kind            ExtractionKind `json:"kind"`
	Value           string         `json:"value"`
	Flavor          Flavor         `json:"flavor"`
	Recipient       string         `json:"recipient"`
	MessageID       string         `json:"messageId"`
	Greeting        string         `json:"greeting,omitempty"`
	EmailReceivedAt time.Time      `json:"emailReceivedAt"`
	ExtractedAt     time.Time      `json:"extractedAt"`
}
