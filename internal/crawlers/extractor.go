package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Links 页面中解析出的链接
type Links struct {
	Anchors   int      // a[href]元素总数
	Canonical []string // 规范化后页面内去重的链接, 保持出现顺序
}

// ExtractLinks 解析HTML并规范化所有a[href]
// 不可抓取或无法解析的链接静默跳过
func ExtractLinks(htmlText string, base *url.URL) (Links, error) {
	root, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return Links{}, fmt.Errorf("解析HTML失败: %w", err)
	}

	var result Links
	seen := make(map[string]bool)
	goquery.NewDocumentFromNode(root).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		result.Anchors++
		href, _ := s.Attr("href")
		canonical, ok := Canonicalize(href, base)
		if !ok || seen[canonical] {
			return
		}
		seen[canonical] = true
		result.Canonical = append(result.Canonical, canonical)
	})
	return result, nil
}

// Attachments 从规范链接中挑出附件链接, 不做域名检查
func Attachments(links []string) []string {
	var out []string
	for _, link := range links {
		if Classify(link) == KindAttachment {
			out = append(out, link)
		}
	}
	return out
}
