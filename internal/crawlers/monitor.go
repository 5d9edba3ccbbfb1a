package crawlers

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Progress 一次监控采样
type Progress struct {
	Crawled   int64
	Queued    int
	Processed int64
}

// Monitor 终止监控
// 满足以下任一条件时调用stop:
//   - 页面预算用完
//   - 连续两次采样(间隔一个周期)都处于空闲状态, 且已处理过至少一个URL
//
// 空闲指队列为空且没有在途URL; 要求连续两次是为了给刚出队的
// worker留出把新链接放回队列的时间
type Monitor struct {
	interval  time.Duration
	budget    *Budget
	frontier  *Frontier
	stats     *Stats
	resources *ResourceMonitor
	onTick    func(Progress)
	logger    zerolog.Logger
}

// NewMonitor 创建监控器
func NewMonitor(interval time.Duration, budget *Budget, frontier *Frontier, stats *Stats, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		interval: interval,
		budget:   budget,
		frontier: frontier,
		stats:    stats,
		logger:   logger,
	}
}

// Run 周期采样, 直到ctx取消或判定结束
func (m *Monitor) Run(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	idleTicks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if m.tick(&idleTicks) {
			stop()
			return
		}
	}
}

// tick 返回是否应当结束
func (m *Monitor) tick(idleTicks *int) bool {
	progress := Progress{
		Crawled:   m.budget.Crawled(),
		Queued:    m.frontier.Len(),
		Processed: m.stats.Processed(),
	}
	if m.onTick != nil {
		m.onTick(progress)
	}
	if m.resources != nil {
		m.resources.Check(progress.Queued)
	}
	m.logger.Debug().Msgf("已爬取 %d | 待爬取 %d", progress.Crawled, progress.Queued)

	if m.budget.Exhausted() {
		m.logger.Info().Int64("max_pages", m.budget.Max()).Msg("已达到最大页面数，准备结束")
		return true
	}

	if m.frontier.Idle() && progress.Processed > 0 {
		*idleTicks++
		if *idleTicks >= 2 {
			m.logger.Info().Int64("processed", progress.Processed).Msg("队列已空且无在途任务，爬取结束")
			return true
		}
		return false
	}
	*idleTicks = 0
	return false
}
