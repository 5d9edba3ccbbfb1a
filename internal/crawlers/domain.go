package crawlers

import (
	"net/url"
	"strings"
)

// DomainPolicy 域名范围策略
// 主机名等于后缀或以"."+后缀结尾时视为范围内, 大小写不敏感
type DomainPolicy struct {
	suffix string
}

// NewDomainPolicy 创建域名策略, 忽略前后的点和空白
func NewDomainPolicy(suffix string) *DomainPolicy {
	return &DomainPolicy{suffix: strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")}
}

// Suffix 规范化后的后缀
func (p *DomainPolicy) Suffix() string {
	return p.suffix
}

// InScope 判断规范URL是否在范围内
func (p *DomainPolicy) InScope(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	return p.HostInScope(u.Hostname())
}

// HostInScope 判断主机名是否在范围内
func (p *DomainPolicy) HostInScope(host string) bool {
	if p.suffix == "" {
		return false
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == p.suffix || strings.HasSuffix(host, "."+p.suffix)
}
