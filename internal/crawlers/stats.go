package crawlers

import (
	"sync/atomic"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
)

// Stats worker共享的计数器
type Stats struct {
	processed       atomic.Int64
	duplicates      atomic.Int64
	filtered        atomic.Int64
	notHTML         atomic.Int64
	httpErrors      atomic.Int64
	networkErrors   atomic.Int64
	timeouts        atomic.Int64
	redirectErrors  atomic.Int64
	decodeFallbacks atomic.Int64
	newLinks        atomic.Int64
	attachments     atomic.Int64
	persistErrors   atomic.Int64
}

// Processed 已标记访问的URL数
func (s *Stats) Processed() int64 {
	return s.processed.Load()
}

// AddNewLinks 累加新发现链接数
func (s *Stats) AddNewLinks(n int) {
	s.newLinks.Add(int64(n))
}

// AddAttachments 累加附件记录数
func (s *Stats) AddAttachments(n int) {
	s.attachments.Add(int64(n))
}

// AddPersistError 记一次持久化失败
func (s *Stats) AddPersistError() {
	s.persistErrors.Add(1)
}

func (s *Stats) recordFetchError(kind ErrorKind) {
	switch kind {
	case ErrKindHTTPStatus:
		s.httpErrors.Add(1)
	case ErrKindTimeout:
		s.timeouts.Add(1)
	case ErrKindTooManyRedirects:
		s.redirectErrors.Add(1)
	default:
		s.networkErrors.Add(1)
	}
}

// Snapshot 导出统计快照
func (s *Stats) Snapshot(budget *Budget, frontier *Frontier) models.CrawlStats {
	return models.CrawlStats{
		Processed:       s.processed.Load(),
		Crawled:         budget.Crawled(),
		Duplicates:      s.duplicates.Load(),
		Filtered:        s.filtered.Load(),
		NotHTML:         s.notHTML.Load(),
		HTTPErrors:      s.httpErrors.Load(),
		NetworkErrors:   s.networkErrors.Load(),
		Timeouts:        s.timeouts.Load(),
		RedirectErrors:  s.redirectErrors.Load(),
		DecodeFallbacks: s.decodeFallbacks.Load(),
		NewLinks:        s.newLinks.Load(),
		Attachments:     s.attachments.Load(),
		PersistErrors:   s.persistErrors.Load(),
		QueueDepth:      frontier.Len(),
	}
}
