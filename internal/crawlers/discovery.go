package crawlers

import (
	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/rs/zerolog"
)

// Discovery 发现策略
// 引擎只负责出队、抓取和解码, 页面如何被利用由策略决定
type Discovery interface {
	Mode() models.CrawlMode
	// Admit 出队并标记访问后、抓取前的范围检查, false记为FilteredOut
	Admit(url string) bool
	// Process 处理一个成功抓取并解码的HTML页面
	Process(page *Page, text string, links Links, logger zerolog.Logger)
}

// PageSaver 保存页面正文, 返回文件绝对路径
type PageSaver interface {
	Save(pageURL string, content string) (string, error)
}

// PageRecorder 写页面日志
type PageRecorder interface {
	Append(record models.CrawlRecord) error
}

// AttachmentRecorder 写附件日志
type AttachmentRecorder interface {
	Append(record models.AttachmentRecord) error
}

// PageDiscovery 全站页面模式
// 保存页面并记录, 把范围内的新链接交回Frontier
type PageDiscovery struct {
	policy   *DomainPolicy
	frontier *Frontier
	budget   *Budget
	store    PageSaver
	records  PageRecorder
	stats    *Stats
}

// NewPageDiscovery 创建页面模式策略
func NewPageDiscovery(policy *DomainPolicy, frontier *Frontier, budget *Budget, store PageSaver, records PageRecorder, stats *Stats) *PageDiscovery {
	return &PageDiscovery{
		policy:   policy,
		frontier: frontier,
		budget:   budget,
		store:    store,
		records:  records,
		stats:    stats,
	}
}

// Mode 实现Discovery
func (d *PageDiscovery) Mode() models.CrawlMode { return models.ModePages }

// Admit 种子同样要经过域名检查
func (d *PageDiscovery) Admit(url string) bool {
	return d.policy.InScope(url)
}

// Process 实现Discovery
func (d *PageDiscovery) Process(page *Page, text string, links Links, logger zerolog.Logger) {
	d.persist(page, text, logger)

	newLinks := 0
	for _, link := range links.Canonical {
		if d.budget.Exhausted() {
			logger.Info().Int64("max_pages", d.budget.Max()).Msg("已达到最大页面数，停止提取链接")
			break
		}
		if !d.policy.InScope(link) {
			continue
		}
		if d.frontier.Offer(link) {
			newLinks++
			logger.Debug().Str("link", link).Msg("发现新链接")
		}
	}
	d.stats.AddNewLinks(newLinks)

	logger.Info().Int("anchors", links.Anchors).Int("new_links", newLinks).Msg("链接提取完成")
	if newLinks == 0 && !d.budget.Exhausted() {
		logger.Warn().Int("anchors", links.Anchors).Msg("页面上未找到有效新链接，可能是解析问题")
	}
}

// persist 持久化失败只记录错误, 不影响链接提取
func (d *PageDiscovery) persist(page *Page, text string, logger zerolog.Logger) {
	path, err := d.store.Save(page.URL, text)
	if err != nil {
		d.stats.AddPersistError()
		logger.Error().Err(err).Msg("保存页面失败")
		return
	}

	record := models.CrawlRecord{URL: page.URL, Filename: path, CrawlTime: page.FetchedAt}
	if err := d.records.Append(record); err != nil {
		d.stats.AddPersistError()
		logger.Error().Err(err).Str("file", path).Msg("写入页面日志失败")
		return
	}
	logger.Debug().Str("file", path).Msg("页面已保存")
}

// AttachmentDiscovery 附件发现模式
// 信任上游种子, 不做域名检查, 也不跟随链接
type AttachmentDiscovery struct {
	records AttachmentRecorder
	stats   *Stats
}

// NewAttachmentDiscovery 创建附件模式策略
func NewAttachmentDiscovery(records AttachmentRecorder, stats *Stats) *AttachmentDiscovery {
	return &AttachmentDiscovery{records: records, stats: stats}
}

// Mode 实现Discovery
func (d *AttachmentDiscovery) Mode() models.CrawlMode { return models.ModeAttachments }

// Admit 附件模式处理所有种子
func (d *AttachmentDiscovery) Admit(string) bool { return true }

// Process 每个附件链接写一行
func (d *AttachmentDiscovery) Process(page *Page, _ string, links Links, logger zerolog.Logger) {
	found := 0
	for _, attachment := range Attachments(links.Canonical) {
		record := models.AttachmentRecord{SourceURL: page.URL, AttachmentURL: attachment}
		if err := d.records.Append(record); err != nil {
			d.stats.AddPersistError()
			logger.Error().Err(err).Str("attachment", attachment).Msg("写入附件日志失败")
			continue
		}
		found++
		logger.Debug().Str("attachment", attachment).Msg("发现附件")
	}
	d.stats.AddAttachments(found)
	logger.Info().Int("anchors", links.Anchors).Int("attachments", found).Msg("附件扫描完成")
}
