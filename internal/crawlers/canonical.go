package crawlers

import (
	"net/url"
	"path"
	"strings"
)

// rejectedSchemes 不可抓取的链接前缀, 静默丢弃
var rejectedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// AttachmentExtensions 附件后缀(按小写比较)
var AttachmentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
}

// LinkKind 链接分类
type LinkKind int

const (
	KindPage LinkKind = iota
	KindAttachment
)

func (k LinkKind) String() string {
	if k == KindAttachment {
		return "attachment"
	}
	return "page"
}

// Canonicalize 将href解析为规范URL
// 相对链接按RFC 3986基于base解析, 去掉fragment; 空链接、解析失败、
// 不可抓取的协议以及缺少主机名时返回false。base为nil时href必须是绝对URL
// 结果满足幂等: 对返回值再次调用得到相同结果
func Canonicalize(href string, base *url.URL) (string, bool) {
	u, ok := canonicalURL(href, base)
	if !ok {
		return "", false
	}
	return u.String(), true
}

func canonicalURL(href string, base *url.URL) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}

	lower := strings.ToLower(href)
	for _, prefix := range rejectedSchemes {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	// base为nil时对自身解析, 同样会清理路径中的点段
	if base == nil {
		base = ref
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}

// Classify 根据路径后缀判断是否为附件
// 只看路径部分, 查询串不影响分类
func Classify(canonical string) LinkKind {
	u, err := url.Parse(canonical)
	if err != nil {
		return KindPage
	}
	if AttachmentExtensions[strings.ToLower(path.Ext(u.Path))] {
		return KindAttachment
	}
	return KindPage
}
