package models

import "time"

// 日志表头, 下游索引流程依赖这些列名
var (
	PageLogHeader       = []string{"URL", "Filename", "CrawlTime"}
	AttachmentLogHeader = []string{"Source_URL", "Attachment_URL"}
)

// CrawlRecord 页面模式下一条爬取记录
type CrawlRecord struct {
	URL       string    // 规范化URL
	Filename  string    // 保存的HTML绝对路径
	CrawlTime time.Time // 抓取时间
}

// Row 转换为CSV行
func (r CrawlRecord) Row() []string {
	return []string{r.URL, r.Filename, r.CrawlTime.Format(time.RFC3339)}
}

// AttachmentRecord 附件模式下一条发现记录
type AttachmentRecord struct {
	SourceURL     string // 所在页面
	AttachmentURL string // 附件链接
}

// Row 转换为CSV行
func (r AttachmentRecord) Row() []string {
	return []string{r.SourceURL, r.AttachmentURL}
}

// Outcome URL的终态
// 所有终态对Frontier来说都是等价的(已消费, 不重试), 只影响日志
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFilteredOut    Outcome = "filtered_out"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeNetworkError   Outcome = "network_error"
	OutcomeDecodeFallback Outcome = "decode_fallback"
)
