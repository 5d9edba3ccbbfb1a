package crawlers

import (
	"context"
	"sync"
	"time"
)

// Frontier 爬取边界
// 队列、visited、pendingDedup和在途计数由同一把锁保护, 是
// "这个URL是否见过"的唯一来源。一个URL在任意时刻最多属于
// {queue+pendingDedup, visited}之一, 进入visited后不会再入队
//
// 出队后的URL处于在途状态: 已离开队列但仍在pendingDedup中,
// 直到MarkVisited把它移入visited
type Frontier struct {
	mu       sync.Mutex
	queue    []string
	head     int
	visited  map[string]struct{}
	pending  map[string]struct{}
	inFlight int

	// 每次入队时关闭并替换, 唤醒所有等待者
	notify chan struct{}
}

// NewFrontier 创建空的Frontier
func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]struct{}),
		pending: make(map[string]struct{}),
		notify:  make(chan struct{}),
	}
}

// Seed 批量加入种子, 返回新加入的数量
func (f *Frontier) Seed(urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, u := range urls {
		if f.addLocked(u) {
			added++
		}
	}
	if added > 0 {
		f.wakeLocked()
	}
	return added
}

// Offer 加入一个新发现的URL
// 仅当URL既不在visited也不在pendingDedup时加入, 返回是否新加入
func (f *Frontier) Offer(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.addLocked(url) {
		return false
	}
	f.wakeLocked()
	return true
}

func (f *Frontier) addLocked(url string) bool {
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.pending[url]; ok {
		return false
	}
	f.pending[url] = struct{}{}
	f.queue = append(f.queue, url)
	return true
}

func (f *Frontier) wakeLocked() {
	close(f.notify)
	f.notify = make(chan struct{})
}

// TryDequeue 带超时的阻塞出队
// 超时或ctx结束时返回false, 调用方据此检查停止信号, 不是错误。
// 成功出队的URL计入在途, 处理完后必须调用Done
func (f *Frontier) TryDequeue(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		f.mu.Lock()
		if f.head < len(f.queue) {
			url := f.queue[f.head]
			f.queue[f.head] = ""
			f.head++
			f.compactLocked()
			f.inFlight++
			f.mu.Unlock()
			return url, true
		}
		wait := f.notify
		f.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

// compactLocked 队首已消费部分过半时回收底层数组
func (f *Frontier) compactLocked() {
	if f.head == len(f.queue) {
		f.queue = f.queue[:0]
		f.head = 0
		return
	}
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append([]string(nil), f.queue[f.head:]...)
		f.head = 0
	}
}

// MarkVisited 标记URL已访问, 幂等
// 已访问过时返回false, 调用方应丢弃该URL
func (f *Frontier) MarkVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[url]; ok {
		return false
	}
	delete(f.pending, url)
	f.visited[url] = struct{}{}
	return true
}

// Done 结束一个在途URL的处理
// 必须在该URL发现的链接全部Offer之后调用, 否则终止监控可能误判空闲
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
}

// Len 当前队列深度
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// VisitedCount 已访问URL数
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Idle 队列为空且没有在途URL
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head == len(f.queue) && f.inFlight == 0
}
