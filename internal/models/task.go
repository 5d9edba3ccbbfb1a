package models

import (
	"fmt"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消(用户中断)
)

// CrawlMode 爬取模式
type CrawlMode string

const (
	ModePages       CrawlMode = "pages"       // 全站页面爬取
	ModeAttachments CrawlMode = "attachments" // 附件链接发现
)

// Valid 检查爬取模式是否合法
func (m CrawlMode) Valid() bool {
	return m == ModePages || m == ModeAttachments
}

// CrawlStats 爬取统计快照
type CrawlStats struct {
	Processed       int64   `json:"processed"`        // 已出队并标记访问的URL数
	Crawled         int64   `json:"crawled"`          // 成功抓取的HTML页面数
	Duplicates      int64   `json:"duplicates"`       // 出队时发现已访问而丢弃的URL数
	Filtered        int64   `json:"filtered"`         // 域名/robots过滤的URL数
	NotHTML         int64   `json:"not_html"`         // 非HTML响应数
	HTTPErrors      int64   `json:"http_errors"`      // 非200响应数
	NetworkErrors   int64   `json:"network_errors"`   // 网络错误数
	Timeouts        int64   `json:"timeouts"`         // 超时数
	RedirectErrors  int64   `json:"redirect_errors"`  // 重定向过多
	DecodeFallbacks int64   `json:"decode_fallbacks"` // 解码回退次数
	NewLinks        int64   `json:"new_links"`        // 新加入队列的链接数
	Attachments     int64   `json:"attachments"`      // 发现的附件记录数
	PersistErrors   int64   `json:"persist_errors"`   // 持久化失败数
	QueueDepth      int     `json:"queue_depth"`      // 结束时队列剩余
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Workers        int           `mapstructure:"workers" json:"workers"`                 // 并发worker数 (默认:10)
	Delay          time.Duration `mapstructure:"delay" json:"delay"`                     // 每次抓取前的礼貌延迟 (默认:500ms)
	MaxPages       int           `mapstructure:"max_pages" json:"max_pages"`             // 页面预算, 0表示不限
	DomainSuffix   string        `mapstructure:"domain_suffix" json:"domain_suffix"`     // 目标域名后缀(仅页面模式)
	Seeds          []string      `mapstructure:"seeds" json:"seeds,omitempty"`           // 种子URL
	SeedFile       string        `mapstructure:"seed_file" json:"seed_file,omitempty"`   // 种子文件
	DequeueTimeout time.Duration `mapstructure:"dequeue_timeout" json:"dequeue_timeout"` // 出队等待超时 (默认:5s)
	PollInterval   time.Duration `mapstructure:"poll_interval" json:"poll_interval"`     // 终止监控间隔 (默认:1s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"` // 连接超时 (默认:3s)
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout"`       // 读取超时 (默认:8s)
	MaxRedirects   int           `mapstructure:"max_redirects" json:"max_redirects"`     // 最大重定向次数 (默认:10)
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" json:"max_body_bytes"`   // 响应体上限
	RespectRobots  bool          `mapstructure:"respect_robots" json:"respect_robots"`   // 遵守robots.txt
	MaxRPS         float64       `mapstructure:"max_rps" json:"max_rps"`                 // 全局每秒请求上限, 0表示不限
	UserAgent      string        `mapstructure:"user_agent" json:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language" json:"accept_language"`
}

// Validate 验证配置, 失败时返回*ValidationError
func (c *CrawlConfig) Validate() error {
	invalid := func(field string, value any, reason string) error {
		return &ValidationError{Section: "crawl", Field: field, Value: fmt.Sprint(value), Reason: reason}
	}

	switch {
	case c.Workers < 1 || c.Workers > 200:
		return invalid("workers", c.Workers, "并发数必须在1-200之间")
	case c.Delay < 0 || c.Delay > time.Minute:
		return invalid("delay", c.Delay, "爬取延迟必须在0-60秒之间")
	case c.MaxPages < 0:
		return invalid("max_pages", c.MaxPages, "页面预算不能为负数")
	case c.DequeueTimeout <= 0:
		return invalid("dequeue_timeout", c.DequeueTimeout, "出队超时必须为正数")
	case c.PollInterval <= 0:
		return invalid("poll_interval", c.PollInterval, "监控间隔必须为正数")
	case c.ConnectTimeout <= 0:
		return invalid("connect_timeout", c.ConnectTimeout, "连接超时必须为正数")
	case c.ReadTimeout <= 0:
		return invalid("read_timeout", c.ReadTimeout, "读取超时必须为正数")
	case c.MaxRedirects < 1 || c.MaxRedirects > 50:
		return invalid("max_redirects", c.MaxRedirects, "最大重定向次数必须在1-50之间")
	case c.MaxBodyBytes <= 0:
		return invalid("max_body_bytes", c.MaxBodyBytes, "响应体上限必须为正数")
	case c.MaxRPS < 0:
		return invalid("max_rps", c.MaxRPS, "每秒请求上限不能为负数")
	}
	return nil
}
