// Package mailquery 根据 Flavor 构建 Gmail 搜索表达式。
package mailquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailcode/backend/internal/domain"
)

// Options 定义每个 Flavor 的发件域名与候选数量。
type Options struct {
	SenderDomains map[domain.Flavor][]string
	MaxResults    map[domain.Flavor]int
}

// DefaultOptions 返回与线上行为一致的默认配置。
func DefaultOptions() Options {
	return Options{
		SenderDomains: map[domain.Flavor][]string{
			domain.FlavorResetLink:  DefaultSenderDomains,
			domain.FlavorHousehold:  DefaultSenderDomains,
			domain.FlavorSignInCode: DefaultCodeSenderDomains,
		},
		MaxResults: map[domain.Flavor]int{
			domain.FlavorResetLink:  3,
			domain.FlavorHousehold:  3,
			domain.FlavorSignInCode: 1,
		},
	}
}

// Builder 查询构建器，构建后只读，可并发使用。
type Builder struct {
	opts Options
}

// NewBuilder 创建查询构建器。
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build 组合主题模板、发件域名、收件人与时间下限。
//
// 调用方负责在此之前拒绝未知 Flavor；传入未知 Flavor 属于编程错误。
func (b *Builder) Build(flavor domain.Flavor, recipient string, sentAfter *time.Time) domain.MailQuery {
	templates := SubjectTemplates(flavor)
	if templates == nil {
		panic(fmt.Sprintf("mailquery: unknown flavor %q", flavor))
	}

	maxResults := b.opts.MaxResults[flavor]
	if maxResults <= 0 {
		maxResults = 1
	}

	senders := make([]string, len(b.opts.SenderDomains[flavor]))
	copy(senders, b.opts.SenderDomains[flavor])

	var after *time.Time
	if sentAfter != nil {
		t := *sentAfter
		after = &t
	}

	return domain.MailQuery{
		SubjectTemplates: templates,
		SenderDomains:    senders,
		Recipient:        strings.TrimSpace(recipient),
		SentAfter:        after,
		MaxResults:       maxResults,
	}
}

// Render 将 MailQuery 渲染为 Gmail 搜索语法。
//
// 形如: from:(a.com OR b.com) (subject:"x" OR subject:"y") to:user@example.com after:1700000000
func Render(q domain.MailQuery) string {
	clauses := make([]string, 0, 4)

	if len(q.SenderDomains) > 0 {
		clauses = append(clauses, "from:("+strings.Join(q.SenderDomains, " OR ")+")")
	}

	if len(q.SubjectTemplates) > 0 {
		subjects := make([]string, 0, len(q.SubjectTemplates))
		for _, s := range q.SubjectTemplates {
			if s == "" {
				continue
			}
			subjects = append(subjects, `subject:"`+strings.ReplaceAll(s, `"`, ``)+`"`)
		}
		if len(subjects) > 0 {
			clauses = append(clauses, "("+strings.Join(subjects, " OR ")+")")
		}
	}

	if q.Recipient != "" {
		clauses = append(clauses, "to:"+sanitizeTerm(q.Recipient))
	}

	if q.SentAfter != nil {
		clauses = append(clauses, "after:"+strconv.FormatInt(q.SentAfter.Unix(), 10))
	}

	return strings.Join(clauses, " ")
}

// sanitizeTerm 去掉会改变搜索语法结构的字符。
func sanitizeTerm(term string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '"', '(', ')', '{', '}':
			return -1
		}
		return r
	}, term)
}
