package security

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// 默认允许的标签
var defaultAllowedTags = []string{
	"a", "b", "blockquote", "br", "code", "div", "em", "h1", "h2", "h3", "h4",
	"hr", "i", "img", "li", "ol", "p", "pre", "span", "strong", "u", "ul",
}

// 默认允许的属性
var defaultAllowedAttrs = []string{"href", "title", "target", "alt", "src"}

// 默认允许的链接协议
var defaultAllowedSchemes = []string{"http", "https", "mailto"}

// 连同内容一起丢弃的标签
var droppedWithContent = map[string]struct{}{
	"script": {}, "style": {}, "iframe": {}, "object": {}, "embed": {},
	"noscript": {}, "template": {}, "svg": {}, "math": {}, "form": {},
}

// HTMLSanitizer 基于白名单的 HTML 清洗器
//
// 不在白名单中的标签会被拆除（保留其文本），脚本类标签连同内容一起删除，
// 属性只保留白名单中的几项，href/src 只允许安全协议。
type HTMLSanitizer struct {
	tags    map[string]struct{}
	attrs   map[string]struct{}
	schemes map[string]struct{}
}

// NewHTMLSanitizer 创建清洗器，使用默认白名单
func NewHTMLSanitizer() *HTMLSanitizer {
	return &HTMLSanitizer{
		tags:    toSet(defaultAllowedTags),
		attrs:   toSet(defaultAllowedAttrs),
		schemes: toSet(defaultAllowedSchemes),
	}
}

// Sanitize 清洗 HTML 片段
func (s *HTMLSanitizer) Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// 无法解析时退化为纯文本转义
		return html.EscapeString(raw)
	}

	body := doc.Find("body")
	for _, node := range body.Nodes {
		s.clean(node)
	}

	out, err := body.Html()
	if err != nil {
		return html.EscapeString(raw)
	}
	return strings.TrimSpace(out)
}

// Text 返回清洗后的纯文本
func (s *HTMLSanitizer) Text(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.Sanitize(raw)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// clean 递归处理子节点
func (s *HTMLSanitizer) clean(parent *html.Node) {
	for child := parent.FirstChild; child != nil; {
		next := child.NextSibling

		switch child.Type {
		case html.CommentNode, html.DoctypeNode:
			parent.RemoveChild(child)
		case html.ElementNode:
			tag := strings.ToLower(child.Data)
			if _, drop := droppedWithContent[tag]; drop {
				parent.RemoveChild(child)
				break
			}

			s.clean(child)

			if _, ok := s.tags[tag]; !ok {
				// 拆除标签，子节点提升到原位置
				for grand := child.FirstChild; grand != nil; {
					nextGrand := grand.NextSibling
					child.RemoveChild(grand)
					parent.InsertBefore(grand, child)
					grand = nextGrand
				}
				parent.RemoveChild(child)
				break
			}

			child.Attr = s.filterAttrs(child.Attr)
		}

		child = next
	}
}

func (s *HTMLSanitizer) filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" {
			continue
		}
		if _, ok := s.attrs[key]; !ok {
			continue
		}
		if (key == "href" || key == "src") && !s.safeURL(attr.Val) {
			continue
		}
		attr.Key = key
		kept = append(kept, attr)
	}
	return kept
}

// safeURL 相对地址允许，绝对地址只允许白名单协议
func (s *HTMLSanitizer) safeURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return true
	}
	_, ok := s.schemes[strings.ToLower(u.Scheme)]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
