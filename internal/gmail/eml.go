package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	htmlcharset "golang.org/x/net/html/charset"

	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/guard"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// EMLDir 从本地目录读取 .eml 文件的离线传输，消息 ID 为去掉扩展名的文件名。
//
// 只解释查询构建器生成的搜索语法子集：from:(...)、subject:"..."、to:、after:。
type EMLDir struct {
	dir string
	log *zap.Logger
}

// NewEMLDir 创建离线传输
func NewEMLDir(dir string, log *zap.Logger) (*EMLDir, error) {
	if log == nil {
		log = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("eml dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("eml dir: %s is not a directory", dir)
	}
	return &EMLDir{dir: dir, log: log}, nil
}

var (
	fromClause    = regexp.MustCompile(`from:\(([^)]*)\)`)
	subjectClause = regexp.MustCompile(`subject:"([^"]*)"`)
	toClause      = regexp.MustCompile(`(?:^|\s)to:(\S+)`)
	afterClause   = regexp.MustCompile(`(?:^|\s)after:(\d+)`)
)

type emlFilter struct {
	senders  []string
	subjects []string
	to       string
	after    time.Time
}

func parseFilter(query string) emlFilter {
	var f emlFilter
	if m := fromClause.FindStringSubmatch(query); m != nil {
		for _, d := range strings.Split(m[1], " OR ") {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				f.senders = append(f.senders, d)
			}
		}
	}
	for _, m := range subjectClause.FindAllStringSubmatch(query, -1) {
		f.subjects = append(f.subjects, strings.ToLower(m[1]))
	}
	rest := subjectClause.ReplaceAllString(query, "")
	if m := toClause.FindStringSubmatch(rest); m != nil {
		f.to = guard.NormalizeEmail(m[1])
	}
	if m := afterClause.FindStringSubmatch(rest); m != nil {
		if sec, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			f.after = time.Unix(sec, 0)
		}
	}
	return f
}

func (f emlFilter) match(msg *domain.MailMessage) bool {
	if len(f.senders) > 0 {
		from := guard.BareAddress(msg.Header("From"))
		ok := false
		for _, d := range f.senders {
			if strings.HasSuffix(from, "@"+d) || strings.HasSuffix(from, "."+d) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.subjects) > 0 {
		subject := strings.ToLower(msg.Header("Subject"))
		ok := false
		for _, s := range f.subjects {
			if strings.Contains(subject, s) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.to != "" && !strings.Contains(strings.ToLower(msg.Header("To")), f.to) {
		return false
	}
	if !f.after.IsZero() && msg.SentAt.Before(f.after) {
		return false
	}
	return true
}

// ListMessages 扫描目录并按发送时间倒序返回匹配的消息 ID。
func (e *EMLDir) ListMessages(ctx context.Context, query string, maxResults int) ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read eml dir: %v", domain.ErrTransport, err)
	}

	filter := parseFilter(query)
	var matched []*domain.MailMessage
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		msg, err := e.load(id)
		if err != nil {
			e.log.Warn("skipping unreadable eml", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if filter.match(msg) {
			matched = append(matched, msg)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SentAt.After(matched[j].SentAt)
	})

	ids := make([]string, 0, len(matched))
	for _, m := range matched {
		if maxResults > 0 && len(ids) == maxResults {
			break
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage 读取并解析指定消息。
func (e *EMLDir) GetMessage(ctx context.Context, id string) (*domain.MailMessage, error) {
	if id == "" || id != filepath.Base(id) {
		return nil, fmt.Errorf("message %q: %w", id, domain.ErrNotFound)
	}
	msg, err := e.load(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("message %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return msg, nil
}

func (e *EMLDir) load(id string) (*domain.MailMessage, error) {
	raw, err := os.ReadFile(filepath.Join(e.dir, id+".eml"))
	if err != nil {
		return nil, err
	}
	return ParseEML(id, raw)
}

// ParseEML 将原始 RFC 5322 邮件解析为 MailMessage。
//
// 正文部分已由 go-message 解码传输编码并转换为 UTF-8，
// 这里重新编码为 base64 以与 Gmail API 的部分数据保持一致。
func ParseEML(id string, raw []byte) (*domain.MailMessage, error) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse eml: %w", err)
	}
	defer reader.Close()

	msg := &domain.MailMessage{ID: id}
	fields := reader.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		msg.SetHeader(fields.Key(), value)
	}
	if date, err := reader.Header.Date(); err == nil {
		msg.SentAt = date
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if gomessage.IsUnknownCharset(err) {
				continue
			}
			return nil, fmt.Errorf("read eml part: %w", err)
		}

		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		msg.Parts = append(msg.Parts, domain.BodyPart{
			MIMEType: domain.ParseMIMEType(contentType),
			Data:     base64.StdEncoding.EncodeToString(body),
		})
	}
	return msg, nil
}
