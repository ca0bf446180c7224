package service

import (
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/extract"
)

// FlavorProfile 一个 Flavor 在流水线中的全部差异点。
//
// 主题模板与发件域名由 mailquery.Builder 持有，这里只描述正文选择与提取方式。
type FlavorProfile struct {
	Flavor         domain.Flavor
	Preferred      []domain.MIMEType     // 正文部分的优先顺序
	Links          *extract.LinkExtractor // Kind 为 link 时使用
	CandidateLimit int                    // 0 表示沿用查询的 MaxResults
}

// DefaultProfiles 返回三种 Flavor 的默认配置。
func DefaultProfiles() map[domain.Flavor]FlavorProfile {
	return map[domain.Flavor]FlavorProfile{
		domain.FlavorResetLink: {
			Flavor:    domain.FlavorResetLink,
			Preferred: []domain.MIMEType{domain.MIMEHTML, domain.MIMEPlain},
			Links:     extract.NewCTALinkExtractor(extract.ResetPasswordPhrases, extract.ResetPasswordFragments),
		},
		domain.FlavorHousehold: {
			Flavor:    domain.FlavorHousehold,
			Preferred: []domain.MIMEType{domain.MIMEHTML, domain.MIMEPlain},
			Links:     extract.NewCTALinkExtractor(extract.HouseholdPhrases, extract.HouseholdFragments),
		},
		domain.FlavorSignInCode: {
			Flavor:    domain.FlavorSignInCode,
			Preferred: []domain.MIMEType{domain.MIMEPlain, domain.MIMEHTML},
		},
	}
}
