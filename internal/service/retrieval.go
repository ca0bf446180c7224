// Package service 组合邮件检索流水线与访问码管理。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mailcode/backend/internal/cache"
	"mailcode/backend/internal/content"
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/extract"
	"mailcode/backend/internal/guard"
	"mailcode/backend/internal/mailfetch"
	"mailcode/backend/internal/mailquery"
	"mailcode/backend/internal/ratelimit"
)

// RateLimitedError 携带限流判定，errors.Is(err, domain.ErrRateLimited) 为真。
type RateLimitedError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %d requests per window, resets at %s",
		e.Decision.Limit, e.Decision.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error { return domain.ErrRateLimited }

// RetrievalObserver 记录检索结果与缓存命中情况，可为 nil。
type RetrievalObserver interface {
	ObserveRetrieval(flavor, outcome string, duration time.Duration)
	ObserveCacheLookup(flavor string, hit bool)
}

// RetrievalConfig 检索流水线参数。
type RetrievalConfig struct {
	FreshnessWindow time.Duration
	// FilterSentAfter 为 true 时在查询中加入 after:(now - window)。
	FilterSentAfter bool
}

// RetrievalDeps 检索流水线依赖；Cache、Limiter、Observer 可为 nil。
type RetrievalDeps struct {
	Builder  *mailquery.Builder
	Fetcher  *mailfetch.Fetcher
	Cache    cache.ResultCache
	Limiter  ratelimit.Limiter
	Profiles map[domain.Flavor]FlavorProfile
	Observer RetrievalObserver
	Logger   *zap.Logger
	Now      func() time.Time
}

// RetrievalService 从邮箱中检索最新的 Netflix 邮件并提取链接或验证码。
type RetrievalService struct {
	builder   *mailquery.Builder
	fetcher   *mailfetch.Fetcher
	cache     cache.ResultCache
	limiter   ratelimit.Limiter
	profiles  map[domain.Flavor]FlavorProfile
	observer  RetrievalObserver
	log       *zap.Logger
	now       func() time.Time
	validator *domain.EmailValidator

	window      time.Duration
	filterAfter bool

	inflight singleflight.Group
}

// NewRetrievalService 创建检索服务。
func NewRetrievalService(deps RetrievalDeps, cfg RetrievalConfig) *RetrievalService {
	if deps.Builder == nil {
		deps.Builder = mailquery.NewBuilder(mailquery.DefaultOptions())
	}
	if deps.Profiles == nil {
		deps.Profiles = DefaultProfiles()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = guard.DefaultFreshnessWindow
	}

	return &RetrievalService{
		builder:     deps.Builder,
		fetcher:     deps.Fetcher,
		cache:       deps.Cache,
		limiter:     deps.Limiter,
		profiles:    deps.Profiles,
		observer:    deps.Observer,
		log:         deps.Logger,
		now:         deps.Now,
		validator:   domain.NewEmailValidator(),
		window:      cfg.FreshnessWindow,
		filterAfter: cfg.FilterSentAfter,
	}
}

// FreshnessWindow 返回生效的新鲜度窗口。
func (s *RetrievalService) FreshnessWindow() time.Duration {
	return s.window
}

// Retrieve 执行一次完整检索：校验、限流、缓存、查询、逐个候选提取。
//
// clientID 为限流标识（通常是客户端 IP）。返回的结果归调用方所有。
func (s *RetrievalService) Retrieve(ctx context.Context, flavor domain.Flavor, email, clientID string) (*domain.ExtractionResult, error) {
	start := s.now()
	result, err := s.retrieve(ctx, flavor, email, clientID)
	if s.observer != nil {
		s.observer.ObserveRetrieval(string(flavor), outcome(err), s.now().Sub(start))
	}
	return result, err
}

func (s *RetrievalService) retrieve(ctx context.Context, flavor domain.Flavor, email, clientID string) (*domain.ExtractionResult, error) {
	profile, ok := s.profiles[flavor]
	if !ok || !flavor.Valid() {
		return nil, fmt.Errorf("%w: unknown flavor %q", domain.ErrInvalidInput, flavor)
	}
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	email = guard.NormalizeEmail(email)

	if s.limiter != nil {
		decision, err := s.limiter.Allow(ctx, clientID)
		if err != nil {
			// 限流后端不可用时放行，避免 Redis 故障拖垮检索
			s.log.Warn("rate limiter unavailable, allowing request",
				zap.String("client", clientID),
				zap.Error(err),
			)
		} else if !decision.Allowed {
			return nil, &RateLimitedError{Decision: decision}
		}
	}

	now := s.now()
	key := cache.KeyFor(flavor, email, now, s.window)

	if cached, hit := s.lookup(ctx, flavor, key); hit {
		return cached, nil
	}

	// 同一键的并发请求只触发一次上游获取；上游调用不随首个请求取消
	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		runCtx := context.WithoutCancel(ctx)
		// 前一轮合并请求可能刚写入缓存
		if s.cache != nil {
			if cached, hit, err := s.cache.Get(runCtx, key); err == nil && hit {
				return cached, nil
			}
		}
		res, err := s.run(runCtx, profile, email, now)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if perr := s.cache.Put(runCtx, key, res); perr != nil {
				s.log.Warn("failed to cache result", zap.String("key", key), zap.Error(perr))
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res := *v.(*domain.ExtractionResult)
	return &res, nil
}

func (s *RetrievalService) lookup(ctx context.Context, flavor domain.Flavor, key string) (*domain.ExtractionResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		hit = false
	}
	if s.observer != nil {
		s.observer.ObserveCacheLookup(string(flavor), hit)
	}
	return cached, hit
}

// run 查询候选邮件并按最新优先逐个尝试，首个成功即返回。
func (s *RetrievalService) run(ctx context.Context, profile FlavorProfile, email string, now time.Time) (*domain.ExtractionResult, error) {
	var sentAfter *time.Time
	if s.filterAfter {
		after := now.Add(-s.window)
		sentAfter = &after
	}

	query := s.builder.Build(profile.Flavor, email, sentAfter)
	ids, err := s.fetcher.ListCandidates(ctx, query, profile.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		res, err := s.tryCandidate(ctx, profile, email, id, now)
		if err == nil {
			s.log.Info("extracted result",
				zap.String("flavor", string(profile.Flavor)),
				zap.String("message_id", id),
				zap.String("kind", string(res.Kind)),
			)
			return res, nil
		}
		s.log.Warn("candidate rejected",
			zap.String("flavor", string(profile.Flavor)),
			zap.String("message_id", id),
			zap.Error(err),
		)
		errs = append(errs, err)
	}
	return nil, pickError(errs)
}

func (s *RetrievalService) tryCandidate(ctx context.Context, profile FlavorProfile, email, id string, now time.Time) (*domain.ExtractionResult, error) {
	msg, err := s.fetcher.FetchFull(ctx, id)
	if err != nil {
		return nil, err
	}

	body, mimeType, err := content.Decode(msg, profile.Preferred)
	if err != nil {
		return nil, err
	}
	if err := guard.CheckFreshness(msg.SentAt, now, s.window); err != nil {
		return nil, err
	}
	if err := guard.CheckRecipient(msg.Header("To"), email); err != nil {
		return nil, err
	}

	text := body
	if mimeType == domain.MIMEHTML {
		text = extract.StripHTML(body)
	}

	result := &domain.ExtractionResult{
		Kind:            profile.Flavor.Kind(),
		Flavor:          profile.Flavor,
		Recipient:       email,
		MessageID:       msg.ID,
		Greeting:        extract.Greeting(text),
		EmailReceivedAt: msg.SentAt,
		ExtractedAt:     now,
	}

	switch result.Kind {
	case domain.KindCode:
		code, err := extract.Code(text)
		if err != nil {
			return nil, err
		}
		result.Value = code
	default:
		if profile.Links == nil {
			return nil, domain.ErrLinkNotFound
		}
		href, strategy, err := profile.Links.Link(body)
		if err != nil {
			return nil, err
		}
		s.log.Debug("link matched", zap.String("message_id", msg.ID), zap.String("strategy", strategy))
		result.Value = href
	}
	return result, nil
}

// pickError 汇总所有候选的失败原因：
// 全部为传输错误时返回传输错误，否则按 越权 > 过期 > 未找到 的顺序选择。
func pickError(errs []error) error {
	if len(errs) == 0 {
		return domain.ErrNotFound
	}

	var unauthorized, expired, notFound, other error
	allTransport := true
	for _, err := range errs {
		if !errors.Is(err, domain.ErrTransport) {
			allTransport = false
		}
		switch {
		case errors.Is(err, domain.ErrUnauthorizedRecipient):
			if unauthorized == nil {
				unauthorized = err
			}
		case errors.Is(err, domain.ErrExpired):
			if expired == nil {
				expired = err
			}
		case domain.IsNotFound(err):
			if notFound == nil {
				notFound = err
			}
		case !errors.Is(err, domain.ErrTransport):
			if other == nil {
				other = err
			}
		}
	}

	switch {
	case allTransport:
		return errs[0]
	case unauthorized != nil:
		return unauthorized
	case expired != nil:
		return expired
	case notFound != nil:
		return notFound
	case other != nil:
		return other
	default:
		return domain.ErrNotFound
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrUnauthorizedRecipient):
		return "unauthorized"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrTransport):
		return "transport_error"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
