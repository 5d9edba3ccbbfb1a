package crawlers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// EngineConfig 引擎参数
type EngineConfig struct {
	Workers        int
	Delay          time.Duration // 每个worker在每次请求前等待
	DequeueTimeout time.Duration
	PollInterval   time.Duration
	MaxRPS         float64 // 全局请求速率上限, 0为不限
}

// EngineOption 可选组件
type EngineOption func(*Engine)

// WithRobots 启用robots.txt检查
func WithRobots(guard *RobotsGuard) EngineOption {
	return func(e *Engine) { e.robots = guard }
}

// WithProgress 每个监控周期回调一次
func WithProgress(fn func(Progress)) EngineOption {
	return func(e *Engine) { e.monitor.onTick = fn }
}

// WithResourceMonitor 每个监控周期检查一次内存
func WithResourceMonitor(rm *ResourceMonitor) EngineOption {
	return func(e *Engine) { e.monitor.resources = rm }
}

// Engine 并发爬取引擎
// N个worker共享一个Frontier; 抓取、解码在引擎中完成,
// 页面如何使用由Discovery决定
type Engine struct {
	config    EngineConfig
	frontier  *Frontier
	fetcher   Fetcher
	discovery Discovery
	budget    *Budget
	stats     *Stats
	robots    *RobotsGuard
	limiter   *rate.Limiter
	monitor   *Monitor
	logger    zerolog.Logger
}

// NewEngine 创建引擎
func NewEngine(config EngineConfig, frontier *Frontier, fetcher Fetcher, discovery Discovery, budget *Budget, stats *Stats, logger zerolog.Logger, opts ...EngineOption) *Engine {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.DequeueTimeout <= 0 {
		config.DequeueTimeout = 5 * time.Second
	}

	e := &Engine{
		config:    config,
		frontier:  frontier,
		fetcher:   fetcher,
		discovery: discovery,
		budget:    budget,
		stats:     stats,
		monitor:   NewMonitor(config.PollInterval, budget, frontier, stats, logger),
		logger:    logger,
	}
	if config.MaxRPS > 0 {
		burst := int(config.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(config.MaxRPS), burst)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 运行直到Frontier耗尽、预算用完或ctx取消
// ctx取消时返回ctx.Err(), 已在途的请求会在自身超时内完成
func (e *Engine) Run(ctx context.Context) error {
	if e.frontier.Len() == 0 {
		e.logger.Warn().Msg("待爬队列为空，没有需要处理的URL")
		return nil
	}

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()
	fetchCtx := context.WithoutCancel(ctx)

	e.logger.Info().
		Str("mode", string(e.discovery.Mode())).
		Int("workers", e.config.Workers).
		Dur("delay", e.config.Delay).
		Int64("max_pages", e.budget.Max()).
		Int("queued", e.frontier.Len()).
		Msg("开始爬取")

	var g errgroup.Group
	g.Go(func() error {
		e.monitor.Run(stopCtx, stop)
		return nil
	})
	for i := 0; i < e.config.Workers; i++ {
		id := i + 1
		g.Go(func() error {
			e.worker(stopCtx, fetchCtx, id)
			return nil
		})
	}
	_ = g.Wait()

	stats := e.Stats()
	e.logger.Info().
		Int64("processed", stats.Processed).
		Int64("crawled", stats.Crawled).
		Int("queued", stats.QueueDepth).
		Msg("爬取结束")

	return ctx.Err()
}

// Stats 当前统计快照
func (e *Engine) Stats() models.CrawlStats {
	return e.stats.Snapshot(e.budget, e.frontier)
}

func (e *Engine) worker(stopCtx, fetchCtx context.Context, id int) {
	logger := e.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker启动")
	defer logger.Debug().Msg("worker退出")

	for {
		if stopCtx.Err() != nil {
			return
		}
		rawURL, ok := e.frontier.TryDequeue(stopCtx, e.config.DequeueTimeout)
		if !ok {
			continue
		}
		cont := e.handle(stopCtx, fetchCtx, rawURL, logger)
		e.frontier.Done()
		if !cont {
			return
		}
	}
}

// handle 处理一个出队的URL, 返回false表示worker应当退出
func (e *Engine) handle(stopCtx, fetchCtx context.Context, rawURL string, workerLogger zerolog.Logger) bool {
	// 停止后出队的URL直接丢弃
	if stopCtx.Err() != nil {
		return false
	}
	if e.budget.Exhausted() {
		return false
	}

	logger := workerLogger.With().Str("url", rawURL).Logger()

	if !e.frontier.MarkVisited(rawURL) {
		e.stats.duplicates.Add(1)
		logger.Debug().Msg("URL已访问，跳过")
		return true
	}
	e.stats.processed.Add(1)

	if !e.discovery.Admit(rawURL) {
		e.stats.filtered.Add(1)
		logger.Info().Str("outcome", string(models.OutcomeFilteredOut)).Msg("跳过非目标域名URL")
		return true
	}

	// 首次访问站点时robots.txt的请求也受延迟和限速约束
	if err := e.wait(stopCtx); err != nil {
		return false
	}
	if e.robots != nil && !e.robots.Allowed(fetchCtx, rawURL) {
		e.stats.filtered.Add(1)
		logger.Info().Str("outcome", string(models.OutcomeFilteredOut)).Msg("robots.txt禁止抓取")
		return true
	}

	page, err := e.fetcher.Fetch(fetchCtx, rawURL)
	if err != nil {
		e.logFetchError(logger, err)
		return true
	}

	if !IsHTML(page.ContentType) {
		e.stats.notHTML.Add(1)
		logger.Info().Str("content_type", page.ContentType).Msg("跳过非HTML内容")
		return true
	}
	if page.Truncated {
		logger.Warn().Int("bytes", len(page.Body)).Msg("响应体超过上限，已截断")
	}
	if page.DecompressErr != nil {
		logger.Warn().Err(page.DecompressErr).Msg("解压失败，使用原始响应体")
	}

	decoded := DecodeBody(page.Body, page.ContentType)
	outcome := models.OutcomeSuccess
	if decoded.Fallback {
		e.stats.decodeFallbacks.Add(1)
		outcome = models.OutcomeDecodeFallback
		logger.Warn().Str("declared", decoded.Declared).Msg("编码解码失败，使用替换字符")
	}

	if !e.budget.TryCommit() {
		logger.Debug().Msg("已达到最大页面数，丢弃页面")
		return false
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		base, _ = url.Parse(rawURL)
	}
	links, err := ExtractLinks(decoded.Text, base)
	if err != nil {
		logger.Warn().Err(err).Msg("解析HTML失败")
	}

	e.discovery.Process(page, decoded.Text, links, logger)
	logger.Info().Str("outcome", string(outcome)).Int64("crawled", e.budget.Crawled()).Msg("页面处理完成")
	return true
}

// wait 请求前的延迟和全局限速, stop后立即返回
func (e *Engine) wait(ctx context.Context) error {
	if e.config.Delay > 0 {
		timer := time.NewTimer(e.config.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if e.limiter != nil {
		return e.limiter.Wait(ctx)
	}
	return nil
}

func (e *Engine) logFetchError(logger zerolog.Logger, err error) {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		e.stats.recordFetchError(ErrKindNetwork)
		logger.Error().Err(err).Str("outcome", string(models.OutcomeNetworkError)).Msg("请求失败")
		return
	}

	e.stats.recordFetchError(fetchErr.Kind)
	switch fetchErr.Kind {
	case ErrKindHTTPStatus:
		logger.Warn().Int("status", fetchErr.StatusCode).Str("outcome", string(models.OutcomeHTTPError)).Msg("HTTP状态码异常")
	case ErrKindTimeout:
		logger.Warn().Err(fetchErr.Err).Str("outcome", string(models.OutcomeNetworkError)).Msg("请求超时")
	case ErrKindTooManyRedirects:
		logger.Warn().Err(fetchErr.Err).Str("outcome", string(models.OutcomeNetworkError)).Msg("重定向次数过多")
	default:
		logger.Error().Err(fetchErr.Err).Str("outcome", string(models.OutcomeNetworkError)).Msg("请求失败")
	}
}
