package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RecoveryAshes/SiteCrawl/internal/crawlers"
	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/RecoveryAshes/SiteCrawl/internal/storage"
	"github.com/RecoveryAshes/SiteCrawl/internal/utils"
	"github.com/rs/zerolog"
)

// ErrNoSeeds 没有可用的种子URL
var ErrNoSeeds = errors.New("没有有效的种子URL")

// Crawler 一次爬取运行的协调器
// 负责解析种子、打开输出、组装引擎并生成报告
type Crawler struct {
	config  *Config
	mode    models.CrawlMode
	headers HeaderProvider
	logger  zerolog.Logger

	progressOut io.Writer
	reportPath  string
}

// NewCrawler 创建协调器
func NewCrawler(config *Config, mode models.CrawlMode, headers HeaderProvider, logger zerolog.Logger) (*Crawler, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("无效的爬取模式: %s", mode)
	}
	if err := config.Crawl.Validate(); err != nil {
		return nil, fmt.Errorf("爬取配置无效: %w", err)
	}
	return &Crawler{
		config:      config,
		mode:        mode,
		headers:     headers,
		logger:      logger.With().Str("mode", string(mode)).Logger(),
		progressOut: os.Stdout,
	}, nil
}

// SetProgressOutput 设置进度条输出, nil表示关闭进度条
func (c *Crawler) SetProgressOutput(w io.Writer) {
	c.progressOut = w
}

// ReportPath 最近一次运行保存的报告路径
func (c *Crawler) ReportPath() string {
	return c.reportPath
}

// Run 执行爬取
// ctx取消视为中断: 返回状态为cancelled的报告, 不返回错误。
// 种子或输出文件不可用时返回错误
func (c *Crawler) Run(ctx context.Context) (*models.CrawlReport, error) {
	start := time.Now()
	crawl := c.config.Crawl

	seeds, err := c.resolveSeeds()
	if err != nil {
		return nil, err
	}

	headers, err := c.headers.GetHeaders()
	if err != nil {
		return nil, fmt.Errorf("HTTP头部无效: %w", err)
	}

	frontier := crawlers.NewFrontier()
	added := frontier.Seed(seeds)
	budget := crawlers.NewBudget(crawl.MaxPages)
	stats := &crawlers.Stats{}

	report := models.NewCrawlReport(c.mode, crawl, start)
	report.SeedCount = added

	var discovery crawlers.Discovery
	switch c.mode {
	case models.ModePages:
		suffix, err := c.domainSuffix(seeds)
		if err != nil {
			return nil, err
		}
		policy := crawlers.NewDomainPolicy(suffix)
		report.DomainSuffix = policy.Suffix()
		for _, seed := range seeds {
			if !policy.InScope(seed) {
				c.logger.Warn().Str("url", seed).Str("domain", policy.Suffix()).Msg("种子URL不在目标域名范围内，将被过滤")
			}
		}

		store, err := storage.NewPageStore(c.config.Output.PagesDir)
		if err != nil {
			return nil, err
		}
		pageLog, err := storage.OpenPageLog(c.config.RecordLogPath(models.ModePages))
		if err != nil {
			return nil, err
		}
		defer c.closeLog(pageLog)

		report.PagesDir = store.Dir()
		report.RecordLog = pageLog.Path()
		discovery = crawlers.NewPageDiscovery(policy, frontier, budget, store, pageLog, stats)

	case models.ModeAttachments:
		attachmentLog, err := storage.OpenAttachmentLog(c.config.RecordLogPath(models.ModeAttachments))
		if err != nil {
			return nil, err
		}
		defer c.closeLog(attachmentLog)

		report.RecordLog = attachmentLog.Path()
		discovery = crawlers.NewAttachmentDiscovery(attachmentLog, stats)
	}

	fetcher := crawlers.NewHTTPFetcher(crawlers.FetcherOptions{
		Headers:        headers,
		ConnectTimeout: crawl.ConnectTimeout,
		ReadTimeout:    crawl.ReadTimeout,
		MaxRedirects:   crawl.MaxRedirects,
		MaxBodyBytes:   crawl.MaxBodyBytes,
	})

	opts := []crawlers.EngineOption{
		crawlers.WithResourceMonitor(crawlers.NewResourceMonitor(c.config.Resource.MemoryWarnMB, c.logger)),
	}
	if crawl.RespectRobots {
		opts = append(opts, crawlers.WithRobots(crawlers.NewRobotsGuard(fetcher, headers.Get("User-Agent"), c.logger)))
	}
	var progress *utils.ProgressReporter
	if c.config.Resource.Progress && c.progressOut != nil {
		progress = utils.NewProgressReporter(crawl.MaxPages, c.progressOut)
		opts = append(opts, crawlers.WithProgress(func(p crawlers.Progress) {
			progress.Update(p.Crawled, p.Queued)
		}))
	}

	engine := crawlers.NewEngine(crawlers.EngineConfig{
		Workers:        crawl.Workers,
		Delay:          crawl.Delay,
		DequeueTimeout: crawl.DequeueTimeout,
		PollInterval:   crawl.PollInterval,
		MaxRPS:         crawl.MaxRPS,
	}, frontier, fetcher, discovery, budget, stats, c.logger, opts...)

	c.logger.Info().
		Str("run_id", report.RunID).
		Int("seeds", added).
		Str("domain", report.DomainSuffix).
		Str("record_log", report.RecordLog).
		Interface("headers", utils.NewHeaderRedactor().Redact(headers)).
		Msg("爬取任务启动")

	runErr := engine.Run(ctx)
	if progress != nil {
		progress.Finish()
	}

	status := models.TaskStatusCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = models.TaskStatusCancelled
		c.logger.Warn().Int("queued", frontier.Len()).Msg("爬取被中断")
	default:
		status = models.TaskStatusFailed
		c.logger.Error().Err(runErr).Msg("爬取失败")
	}
	report.Finish(status, engine.Stats(), time.Now())

	reporter := utils.NewReporter(c.config.Output.ReportDir, c.logger)
	if path, err := reporter.Save(report); err != nil {
		c.logger.Warn().Err(err).Msg("保存报告失败")
	} else {
		c.reportPath = path
	}

	c.logger.Info().
		Str("status", string(status)).
		Int64("crawled", report.Stats.Crawled).
		Int64("processed", report.Stats.Processed).
		Int("visited", frontier.VisitedCount()).
		Float64("duration", report.Duration).
		Msg("爬取任务结束")

	if status == models.TaskStatusFailed {
		return report, runErr
	}
	return report, nil
}

// resolveSeeds 合并配置中的种子和种子文件, 规范化并去掉无效项
// 附件模式未指定任何种子时读取页面模式的记录日志
func (c *Crawler) resolveSeeds() ([]string, error) {
	crawl := c.config.Crawl
	raw := append([]string(nil), crawl.Seeds...)

	seedFile := crawl.SeedFile
	if seedFile == "" && len(raw) == 0 && c.mode == models.ModeAttachments {
		seedFile = c.config.RecordLogPath(models.ModePages)
	}
	if seedFile != "" {
		fromFile, err := utils.ReadSeedURLs(seedFile, c.logger)
		if err != nil {
			return nil, err
		}
		raw = append(raw, fromFile...)
	}

	seeds := make([]string, 0, len(raw))
	for _, s := range raw {
		canonical, ok := crawlers.Canonicalize(s, nil)
		if !ok {
			c.logger.Warn().Str("url", s).Msg("跳过无效的种子URL")
			continue
		}
		seeds = append(seeds, canonical)
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	return seeds, nil
}

// domainSuffix 未配置时取第一个种子的主机名(去掉www.)
func (c *Crawler) domainSuffix(seeds []string) (string, error) {
	if c.config.Crawl.DomainSuffix != "" {
		return c.config.Crawl.DomainSuffix, nil
	}
	suffix, err := models.DeriveDomainSuffix(seeds[0])
	if err != nil {
		return "", fmt.Errorf("无法确定目标域名: %w", err)
	}
	c.logger.Info().Str("domain", suffix).Msg("未指定域名，使用种子URL的主机名")
	return suffix, nil
}

func (c *Crawler) closeLog(l io.Closer) {
	if err := l.Close(); err != nil {
		c.logger.Error().Err(err).Msg("关闭记录日志失败")
	}
}
