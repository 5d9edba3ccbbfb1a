package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	RunID        string     `json:"run_id"`
	Mode         CrawlMode  `json:"mode"`
	Status       TaskStatus `json:"status"`
	SeedCount    int        `json:"seed_count"`
	DomainSuffix string     `json:"domain_suffix,omitempty"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats CrawlStats `json:"stats"`

	// 输出路径
	RecordLog string `json:"record_log"`          // CSV记录日志
	PagesDir  string `json:"pages_dir,omitempty"` // HTML保存目录(仅页面模式)

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// NewCrawlReport 创建报告, 生成运行ID
func NewCrawlReport(mode CrawlMode, config CrawlConfig, start time.Time) *CrawlReport {
	return &CrawlReport{
		RunID:     generateID(),
		Mode:      mode,
		Status:    TaskStatusRunning,
		StartTime: start,
		Config:    config,
	}
}

// Finish 填充结束时间和统计
func (r *CrawlReport) Finish(status TaskStatus, stats CrawlStats, end time.Time) {
	r.Status = status
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime).Seconds()
	stats.Duration = r.Duration
	r.Stats = stats
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
