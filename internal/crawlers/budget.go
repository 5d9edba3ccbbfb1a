package crawlers

import "sync/atomic"

// Budget 页面预算, max为0表示不限
// 成功页面数不会超过max: 超出的页面在TryCommit处被拒绝
type Budget struct {
	max     int64
	crawled atomic.Int64
}

// NewBudget 创建预算
func NewBudget(maxPages int) *Budget {
	if maxPages < 0 {
		maxPages = 0
	}
	return &Budget{max: int64(maxPages)}
}

// Max 预算上限, 0为不限
func (b *Budget) Max() int64 {
	return b.max
}

// TryCommit 记一个成功页面, 预算已满时返回false
func (b *Budget) TryCommit() bool {
	if b.max == 0 {
		b.crawled.Add(1)
		return true
	}
	for {
		current := b.crawled.Load()
		if current >= b.max {
			return false
		}
		if b.crawled.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Crawled 已计入的成功页面数
func (b *Budget) Crawled() int64 {
	return b.crawled.Load()
}

// Exhausted 预算是否已用完
func (b *Budget) Exhausted() bool {
	return b.max > 0 && b.crawled.Load() >= b.max
}
