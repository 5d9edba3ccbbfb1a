package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
	logger    zerolog.Logger
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Save 保存爬取报告, 返回报告路径
// 同一模式的报告会被下一次运行覆盖, CSV日志才是持久记录
func (r *Reporter) Save(report *models.CrawlReport) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(r.outputDir, fmt.Sprintf("crawl_report_%s.json", report.Mode))

	jsonData, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	r.logger.Debug().Str("path", path).Msg("保存报告")
	return path, nil
}

// ProgressReporter 爬取进度显示
// 有页面预算时显示进度条, 否则显示带计数的spinner
type ProgressReporter struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewProgressReporter 创建进度显示, maxPages<=0表示无上限
func NewProgressReporter(maxPages int, w io.Writer) *ProgressReporter {
	max := maxPages
	if max <= 0 {
		max = -1
	}
	if w == nil {
		w = os.Stdout
	}
	return &ProgressReporter{bar: NewProgressBar(max, "已爬取 0 | 待爬取 0", w), out: w}
}

// Update 刷新已爬取数和队列深度
func (p *ProgressReporter) Update(crawled int64, queued int) {
	p.bar.Describe(fmt.Sprintf("已爬取 %d | 待爬取 %d", crawled, queued))
	_ = p.bar.Set64(crawled)
}

// Finish 停止刷新并保留当前状态
// 不调用bar.Finish, 否则未达预算时也会显示满格
func (p *ProgressReporter) Finish() {
	_ = p.bar.Exit()
	fmt.Fprintln(p.out)
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = os.Stdout
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("页"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
