// Package extract 从解码后的邮件正文中提取链接、验证码与问候语。
//
// 所有函数均为纯函数，畸形输入只会返回未找到错误，不会 panic。
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"mailcode/backend/internal/domain"
)

// Page 一次提取过程中共享的正文，DOM 按需解析一次。
type Page struct {
	Raw string

	parsed bool
	doc    *html.Node
}

// NewPage 包装解码后的 HTML 正文。
func NewPage(raw string) *Page {
	return &Page{Raw: raw}
}

// DOM 返回解析后的文档树；解析失败返回 nil。
func (p *Page) DOM() *html.Node {
	if !p.parsed {
		p.parsed = true
		doc, err := html.Parse(strings.NewReader(p.Raw))
		if err == nil {
			p.doc = doc
		}
	}
	return p.doc
}

// Strategy 链接提取策略，未命中返回 false。
type Strategy interface {
	Name() string
	Find(p *Page) (string, bool)
}

// LinkExtractor 按顺序执行策略，首个命中即返回。
type LinkExtractor struct {
	strategies []Strategy
}

// NewLinkExtractor 使用给定策略顺序创建提取器。
func NewLinkExtractor(strategies ...Strategy) *LinkExtractor {
	return &LinkExtractor{strategies: strategies}
}

// NewCTALinkExtractor 组合标准三段策略：按钮文本、href 片段、正则兜底。
func NewCTALinkExtractor(phrases, fragments []string) *LinkExtractor {
	return NewLinkExtractor(
		AnchorText(phrases),
		HrefFragment(fragments),
		RegexFallback(phrases),
	)
}

// Link 返回首个命中策略提取的 href 以及策略名。
func (e *LinkExtractor) Link(body string) (string, string, error) {
	page := NewPage(body)
	for _, s := range e.strategies {
		if href, ok := s.Find(page); ok {
			return href, s.Name(), nil
		}
	}
	return "", "", domain.ErrLinkNotFound
}

type anchorText struct {
	phrases []string
}

// AnchorText 匹配可见文本与行动按钮文本完全一致（忽略大小写与多余空白）的锚点。
func AnchorText(phrases []string) Strategy {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := collapse(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	return anchorText{phrases: normalized}
}

func (anchorText) Name() string { return "anchor-text" }

func (s anchorText) Find(p *Page) (string, bool) {
	var found string
	walkAnchors(p.DOM(), func(n *html.Node) bool {
		href := attr(n, "href")
		if href == "" {
			return true
		}
		text := collapse(textContent(n))
		for _, phrase := range s.phrases {
			if strings.EqualFold(text, phrase) {
				found = href
				return false
			}
		}
		return true
	})
	return found, found != ""
}

type hrefFragment struct {
	fragments []string
}

// HrefFragment 匹配 href 包含已知产品路径片段的首个锚点。
func HrefFragment(fragments []string) Strategy {
	return hrefFragment{fragments: fragments}
}

func (hrefFragment) Name() string { return "href-fragment" }

func (s hrefFragment) Find(p *Page) (string, bool) {
	if len(s.fragments) == 0 {
		return "", false
	}
	var found string
	walkAnchors(p.DOM(), func(n *html.Node) bool {
		href := attr(n, "href")
		for _, frag := range s.fragments {
			if frag != "" && strings.Contains(href, frag) {
				found = href
				return false
			}
		}
		return true
	})
	return found, found != ""
}

type regexFallback struct {
	re *regexp.Regexp
}

// RegexFallback 在原始文本中查找紧跟行动按钮文本的 <a href="...">，用于 DOM 匹配失败的畸形标记。
func RegexFallback(phrases []string) Strategy {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return regexFallback{}
	}
	re := regexp.MustCompile(`(?is)<a\b[^>]*?\bhref\s*=\s*["']([^"']+)["'][^>]*>\s*(?:<[^>]*>\s*)*(?:` +
		strings.Join(quoted, "|") + `)`)
	return regexFallback{re: re}
}

func (regexFallback) Name() string { return "regex" }

func (s regexFallback) Find(p *Page) (string, bool) {
	if s.re == nil {
		return "", false
	}
	m := s.re.FindStringSubmatch(p.Raw)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// walkAnchors 深度优先遍历 <a> 元素，fn 返回 false 时停止。
func walkAnchors(root *html.Node, fn func(*html.Node) bool) {
	if root == nil {
		return
	}
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if !fn(n) {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapse 去除首尾空白并将连续空白（含不换行空格）合并为单个空格。
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
