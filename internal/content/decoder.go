// Package content 选择邮件正文部分并解码传输编码、字符集与 HTML 实体。
package content

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"mailcode/backend/internal/domain"
)

// Decode 按 preferred 顺序选择第一个解码后非空的正文部分。
//
// 每种类型都会完整深度优先遍历部分树，找不到时才尝试下一种类型。
func Decode(msg *domain.MailMessage, preferred []domain.MIMEType) (string, domain.MIMEType, error) {
	if msg == nil {
		return "", "", domain.ErrNoBody
	}
	for _, want := range preferred {
		if text, ok := findPart(msg.Parts, want); ok {
			return text, want, nil
		}
	}
	return "", "", fmt.Errorf("message %s: %w", msg.ID, domain.ErrNoBody)
}

func findPart(parts []domain.BodyPart, want domain.MIMEType) (string, bool) {
	for i := range parts {
		p := &parts[i]
		if p.MIMEType == want && p.Data != "" {
			text, err := decodePart(p)
			if err == nil && strings.TrimSpace(text) != "" {
				return text, true
			}
		}
		if len(p.Parts) > 0 {
			if text, ok := findPart(p.Parts, want); ok {
				return text, true
			}
		}
	}
	return "", false
}

func decodePart(p *domain.BodyPart) (string, error) {
	raw, err := DecodeData(p.Data)
	if err != nil {
		return "", err
	}
	raw = transcode(raw, p.Charset)
	return html.UnescapeString(string(raw)), nil
}

// DecodeData 解码 base64 数据，标准与 URL 安全字母表、有无填充均可。
func DecodeData(data string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ', '=':
			return -1
		case '-':
			return '+'
		case '_':
			return '/'
		}
		return r
	}, data)

	out, err := base64.RawStdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return out, nil
}

// transcode 将非 UTF-8 字符集转换为 UTF-8，失败时保留原始字节。
func transcode(body []byte, charset string) []byte {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		return body
	}
	enc := charsetEncoding(charset)
	if enc == nil {
		return body
	}
	converted, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return converted
}

// charsetEncoding 根据字符集名称返回编码，未知字符集返回 nil。
func charsetEncoding(charset string) encoding.Encoding {
	if charset == "ks_c_5601-1987" {
		charset = "euc-kr"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	return enc
}
