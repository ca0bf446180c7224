// Package mailfetch 通过邮件传输能力列出并获取候选邮件。
package mailfetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/mailquery"
)

// Transport 外部邮件传输能力（Gmail API 或本地 .eml 目录）。
//
// ListMessages 按日期倒序返回消息 ID；没有匹配时返回空切片而不是错误。
// GetMessage 在 ID 已不存在时返回 domain.ErrNotFound。
type Transport interface {
	ListMessages(ctx context.Context, query string, maxResults int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*domain.MailMessage, error)
}

// Observer 记录上游调用耗时，可为 nil。
type Observer interface {
	ObserveTransportCall(op string, err error, duration time.Duration)
}

// Fetcher 邮件获取器。
type Fetcher struct {
	transport Transport
	observer  Observer
	log       *zap.Logger
}

// NewFetcher 创建邮件获取器。
func NewFetcher(transport Transport, observer Observer, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		transport: transport,
		observer:  observer,
		log:       log,
	}
}

// ListCandidates 列出匹配查询的消息 ID（最新在前），最多 limit 个且去重。
func (f *Fetcher) ListCandidates(ctx context.Context, q domain.MailQuery, limit int) ([]string, error) {
	if limit <= 0 {
		limit = q.MaxResults
	}
	if limit <= 0 {
		limit = 1
	}

	query := mailquery.Render(q)
	start := time.Now()
	ids, err := f.transport.ListMessages(ctx, query, limit)
	f.observe("list", err, time.Since(start))
	if err != nil {
		return nil, classify(err)
	}

	f.log.Debug("listed candidates",
		zap.String("query", query),
		zap.Int("count", len(ids)),
	)

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// FetchFull 获取完整邮件（头部 + 部分树）。
func (f *Fetcher) FetchFull(ctx context.Context, id string) (*domain.MailMessage, error) {
	start := time.Now()
	msg, err := f.transport.GetMessage(ctx, id)
	f.observe("get", err, time.Since(start))
	if err != nil {
		return nil, classify(err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return msg, nil
}

func (f *Fetcher) observe(op string, err error, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveTransportCall(op, err, d)
	}
}

// classify 保留已分类的领域错误，其余统一包装为 ErrTransport。
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTransport):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
}
