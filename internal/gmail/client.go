// Package gmail 实现基于 Gmail API 与本地 .eml 目录的邮件传输。
package gmail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/mail"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailcode/backend/internal/domain"
)

// Config Gmail 传输配置
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
	User         string        // 默认 "me"
	Timeout      time.Duration // 单次 API 调用超时
	QPS          float64       // 客户端侧限速，<=0 表示不限速
	Burst        int

	BreakerFailures uint32        // 连续失败多少次后熔断
	BreakerTimeout  time.Duration // 熔断后多久进入半开
}

// Client Gmail API 传输
type Client struct {
	svc     *gmailv1.Service
	user    string
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New 使用刷新令牌创建 Gmail 客户端。
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("gmail: client id, client secret and refresh token are required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmailv1.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewWithService(svc, cfg, log), nil
}

// NewWithService 使用已创建的 Gmail 服务构建客户端。
func NewWithService(svc *gmailv1.Service, cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.User == "" {
		cfg.User = "me"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.QPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), burst)
	}

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// 客户端错误（如 404）不计入熔断
			return err == nil || !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		svc:     svc,
		user:    cfg.User,
		timeout: cfg.Timeout,
		limiter: limiter,
		cb:      cb,
		log:     log,
	}
}

// ListMessages 按日期倒序列出匹配查询的消息 ID。
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int) ([]string, error) {
	var resp *gmailv1.ListMessagesResponse
	err := c.execute(ctx, "list", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Users.Messages.List(c.user).
			Q(query).
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage 获取完整邮件（format=full）。
func (c *Client) GetMessage(ctx context.Context, id string) (*domain.MailMessage, error) {
	var msg *gmailv1.Message
	err := c.execute(ctx, "get", func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Users.Messages.Get(c.user, id).
			Format("full").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return toMailMessage(msg), nil
}

// Ping 校验凭据可用（供就绪检查使用）。
func (c *Client) Ping(ctx context.Context) error {
	return c.execute(ctx, "profile", func(ctx context.Context) error {
		_, err := c.svc.Users.GetProfile(c.user).Context(ctx).Do()
		return err
	})
}

// BreakerState 当前熔断器状态。
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// execute 依次经过限速、熔断与超时后调用 fn，并将错误归类为领域错误。
func (c *Client) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return nil, fn(callCtx)
	})
	if err == nil {
		return nil
	}

	if isNotFound(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn("gmail call rejected by circuit breaker", zap.String("op", op))
	} else {
		c.log.Error("gmail call failed", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// tripsBreaker 仅服务端错误、限流与网络错误计入熔断。
func tripsBreaker(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

func toMailMessage(m *gmailv1.Message) *domain.MailMessage {
	msg := &domain.MailMessage{ID: m.Id}
	if m.Payload == nil {
		return msg
	}

	for _, h := range m.Payload.Headers {
		msg.SetHeader(h.Name, h.Value)
	}
	msg.Parts = []domain.BodyPart{toBodyPart(m.Payload)}

	if date, err := mail.ParseDate(msg.Header("Date")); err == nil {
		msg.SentAt = date
	} else if m.InternalDate > 0 {
		msg.SentAt = time.UnixMilli(m.InternalDate)
	}
	return msg
}

func toBodyPart(p *gmailv1.MessagePart) domain.BodyPart {
	part := domain.BodyPart{MIMEType: domain.ParseMIMEType(p.MimeType)}
	for _, h := range p.Headers {
		if http.CanonicalHeaderKey(h.Name) == "Content-Type" {
			part.Charset = charsetOf(h.Value)
			break
		}
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, toBodyPart(child))
		}
	}
	return part
}

func charsetOf(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
