package crawlers

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsGuard 可选的robots.txt检查
// 每个站点只抓取一次robots.txt, 并发请求同一站点时合并
type RobotsGuard struct {
	fetcher Fetcher
	agent   string
	logger  zerolog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
	group singleflight.Group
}

// NewRobotsGuard 创建robots检查器, agent用于匹配规则组
func NewRobotsGuard(fetcher Fetcher, agent string, logger zerolog.Logger) *RobotsGuard {
	return &RobotsGuard{
		fetcher: fetcher,
		agent:   agent,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed 判断URL是否允许抓取; robots.txt不可用时允许
func (g *RobotsGuard) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data := g.robotsFor(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, g.agent)
}

func (g *RobotsGuard) robotsFor(ctx context.Context, site string) *robotstxt.RobotsData {
	g.mu.Lock()
	data, ok := g.cache[site]
	g.mu.Unlock()
	if ok {
		return data
	}

	v, _, _ := g.group.Do(site, func() (interface{}, error) {
		g.mu.Lock()
		data, ok := g.cache[site]
		g.mu.Unlock()
		if ok {
			return data, nil
		}

		data = g.load(ctx, site)
		g.mu.Lock()
		g.cache[site] = data
		g.mu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

// load 在锁外执行网络请求
func (g *RobotsGuard) load(ctx context.Context, site string) *robotstxt.RobotsData {
	robotsURL := site + "/robots.txt"
	page, err := g.fetcher.Fetch(ctx, robotsURL)

	var data *robotstxt.RobotsData
	var fetchErr *FetchError
	switch {
	case err == nil:
		data, err = robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	case errors.As(err, &fetchErr) && fetchErr.Kind == ErrKindHTTPStatus:
		// 4xx视为全部允许, 5xx视为全部禁止
		data, err = robotstxt.FromStatusAndBytes(fetchErr.StatusCode, nil)
	default:
		g.logger.Warn().Err(err).Str("robots", robotsURL).Msg("获取robots.txt失败, 视为允许")
		return nil
	}
	if err != nil {
		g.logger.Warn().Err(err).Str("robots", robotsURL).Msg("解析robots.txt失败, 视为允许")
		return nil
	}
	g.logger.Debug().Str("robots", robotsURL).Msg("已加载robots.txt")
	return data
}
