package crawlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteCrawl/internal/storage"
	"github.com/rs/zerolog"
)

// testSite 按路径返回固定内容的站点, 记录每个路径的访问次数
type testSite struct {
	server *httptest.Server
	mu     sync.Mutex
	hits   map[string]int
}

func newTestSite(t *testing.T, pages map[string]string, delay time.Duration) *testSite {
	t.Helper()
	site := &testSite{hits: make(map[string]int)}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		switch {
		case r.URL.Path == "/moved":
			http.Redirect(w, r, "/dir/", http.StatusFound)
			return
		case strings.HasSuffix(r.URL.Path, ".pdf"):
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
			return
		}

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(site.server.Close)
	return site
}

func (s *testSite) url(path string) string {
	return s.server.URL + path
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) host() string {
	u, _ := url.Parse(s.server.URL)
	return u.Hostname()
}

func fastEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:        4,
		DequeueTimeout: 20 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	}
}

type pageFixture struct {
	frontier *Frontier
	budget   *Budget
	stats    *Stats
	log      *storage.PageLog
	engine   *Engine
}

func newPageFixture(t *testing.T, site *testSite, maxPages int, config EngineConfig, opts ...EngineOption) *pageFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewPageStore(filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("NewPageStore() error = %v", err)
	}
	log, err := storage.OpenPageLog(filepath.Join(dir, "webpages.csv"))
	if err != nil {
		t.Fatalf("OpenPageLog() error = %v", err)
	}
	t.Cleanup(func() { log.Close() })

	f := &pageFixture{
		frontier: NewFrontier(),
		budget:   NewBudget(maxPages),
		stats:    &Stats{},
		log:      log,
	}
	f.frontier.Seed([]string{site.url("/")})
	discovery := NewPageDiscovery(NewDomainPolicy(site.host()), f.frontier, f.budget, store, log, f.stats)
	fetcher := testFetcher(nil)
	f.engine = NewEngine(config, f.frontier, fetcher, discovery, f.budget, f.stats, zerolog.Nop(), opts...)
	return f
}

func readLogURLs(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开日志失败: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("解析CSV失败: %v", err)
	}
	var urls []string
	for _, row := range rows[1:] {
		urls = append(urls, row[0])
	}
	sort.Strings(urls)
	return urls
}

func runEngine(t *testing.T, engine *Engine) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := engine.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("引擎未在期限内结束")
	}
	return err
}

func TestEngine_PageModeCrawlsWholeSite(t *testing.T) {
	pages := map[string]string{
		"/":  `<a href="/a">a</a><a href="/b#top">b</a><a href="https://external.example/x">ext</a>`,
		"/a": `<a href="/">home</a><a href="c">c</a><a href="/missing">404</a><a href="/doc.pdf">pdf</a>`,
		"/b": `<a href="/a">a</a><a href="/c">c</a><a href="mailto:x@y.z">mail</a>`,
		"/c": `<a href="/b">b</a><a href="/d?x=1">d</a>`,
		"/d": `<p>leaf</p>`,
	}
	site := newTestSite(t, pages, 0)
	f := newPageFixture(t, site, 0, fastEngineConfig())

	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := readLogURLs(t, f.log.Path())
	want := []string{site.url("/"), site.url("/a"), site.url("/b"), site.url("/c"), site.url("/d?x=1")}
	sort.Strings(want)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("页面日志 = %v, want %v", got, want)
	}

	for _, path := range []string{"/", "/a", "/b", "/c", "/d", "/missing", "/doc.pdf"} {
		if n := site.hitCount(path); n != 1 {
			t.Errorf("%s 被请求 %d 次, want 1", path, n)
		}
	}

	stats := f.engine.Stats()
	if stats.Crawled != 5 || stats.HTTPErrors != 1 || stats.NotHTML != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Processed != 7 || stats.QueueDepth != 0 {
		t.Errorf("Processed = %d, QueueDepth = %d", stats.Processed, stats.QueueDepth)
	}
}

func TestEngine_PageBudget(t *testing.T) {
	pages := map[string]string{"/": ""}
	var links strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&links, `<a href="/p%d">p</a>`, i)
		pages[fmt.Sprintf("/p%d", i)] = `<a href="/">home</a>`
	}
	pages["/"] = links.String()

	site := newTestSite(t, pages, 0)
	f := newPageFixture(t, site, 3, fastEngineConfig())

	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := readLogURLs(t, f.log.Path()); len(got) != 3 {
		t.Errorf("页面日志行数 = %d, want 3", len(got))
	}
	if f.budget.Crawled() != 3 {
		t.Errorf("Crawled = %d", f.budget.Crawled())
	}
}

func TestEngine_RelativeLinksResolveAgainstFinalURL(t *testing.T) {
	pages := map[string]string{
		"/":          `<a href="/moved">moved</a>`,
		"/dir/":      `<a href="child">child</a>`,
		"/dir/child": `<p>ok</p>`,
	}
	site := newTestSite(t, pages, 0)
	f := newPageFixture(t, site, 0, fastEngineConfig())

	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if site.hitCount("/dir/child") != 1 {
		t.Error("重定向后的相对链接应基于最终地址解析")
	}
	// 记录的是请求的URL
	got := readLogURLs(t, f.log.Path())
	want := []string{site.url("/"), site.url("/dir/child"), site.url("/moved")}
	sort.Strings(want)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("页面日志 = %v, want %v", got, want)
	}
}

func TestEngine_AttachmentMode(t *testing.T) {
	pages := map[string]string{
		"/a": `<a href="report.PDF">r</a><a href="notes.txt">n</a><a href="/next">next</a>`,
		"/b": `<a href="https://other.example/files/t.xlsx">x</a><a href="/files/t.docx#p2">d</a><a href="/files/t.docx">again</a>`,
	}
	site := newTestSite(t, pages, 0)

	logPath := filepath.Join(t.TempDir(), "filepages.csv")
	records, err := storage.OpenAttachmentLog(logPath)
	if err != nil {
		t.Fatalf("OpenAttachmentLog() error = %v", err)
	}
	defer records.Close()

	frontier := NewFrontier()
	frontier.Seed([]string{site.url("/a"), site.url("/b")})
	budget := NewBudget(0)
	stats := &Stats{}
	engine := NewEngine(fastEngineConfig(), frontier, testFetcher(nil), NewAttachmentDiscovery(records, stats), budget, stats, zerolog.Nop())

	if err := runEngine(t, engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	file, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("打开附件日志失败: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("解析CSV失败: %v", err)
	}

	got := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		got = append(got, row[0]+" -> "+row[1])
	}
	sort.Strings(got)
	want := []string{
		site.url("/a") + " -> " + site.url("/report.PDF"),
		site.url("/b") + " -> " + site.url("/files/t.docx"),
		site.url("/b") + " -> https://other.example/files/t.xlsx",
	}
	sort.Strings(want)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("附件日志 = %v, want %v", got, want)
	}
	if site.hitCount("/next") != 0 {
		t.Error("附件模式不应跟随链接")
	}
	if engine.Stats().Attachments != 3 {
		t.Errorf("Attachments = %d", engine.Stats().Attachments)
	}
}

func TestEngine_Cancel(t *testing.T) {
	pages := map[string]string{"/": `<a href="/a">a</a>`, "/a": `<a href="/b">b</a>`, "/b": ""}
	site := newTestSite(t, pages, 300*time.Millisecond)
	f := newPageFixture(t, site, 0, fastEngineConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := f.engine.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("取消后未及时结束: %v", time.Since(start))
	}
	// 在途请求仍然完成并记录
	if f.budget.Crawled() != 1 || site.hitCount("/b") != 0 {
		t.Errorf("Crawled = %d, /b hits = %d", f.budget.Crawled(), site.hitCount("/b"))
	}
}

func TestEngine_Robots(t *testing.T) {
	pages := map[string]string{
		"/robots.txt": "User-agent: *\nDisallow: /private\n",
		"/":           `<a href="/private/x">p</a><a href="/public">ok</a>`,
		"/public":     "",
		"/private/x":  "",
	}
	site := newTestSite(t, pages, 0)
	fetcher := testFetcher(nil)
	guard := NewRobotsGuard(fetcher, "SiteCrawl", zerolog.Nop())
	f := newPageFixture(t, site, 0, fastEngineConfig(), WithRobots(guard))

	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if site.hitCount("/private/x") != 0 {
		t.Error("robots.txt禁止的路径不应被请求")
	}
	if site.hitCount("/public") != 1 || site.hitCount("/robots.txt") != 1 {
		t.Errorf("/public = %d, /robots.txt = %d", site.hitCount("/public"), site.hitCount("/robots.txt"))
	}
	if f.engine.Stats().Filtered != 1 {
		t.Errorf("Filtered = %d", f.engine.Stats().Filtered)
	}
}

func TestEngine_RobotsFetchWaitsForDelay(t *testing.T) {
	site := newTestSite(t, map[string]string{"/": "<p>only</p>"}, 0)

	const delay = 150 * time.Millisecond
	var mu sync.Mutex
	var robotsAt time.Time
	robotsFetcher := &stubFetcher{respond: func(rawURL string) (*Page, error) {
		mu.Lock()
		robotsAt = time.Now()
		mu.Unlock()
		return nil, &FetchError{Kind: ErrKindHTTPStatus, URL: rawURL, StatusCode: http.StatusNotFound}
	}}

	config := fastEngineConfig()
	config.Workers = 1
	config.Delay = delay
	f := newPageFixture(t, site, 0, config, WithRobots(NewRobotsGuard(robotsFetcher, "SiteCrawl", zerolog.Nop())))

	start := time.Now()
	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if robotsAt.IsZero() {
		t.Fatal("未请求robots.txt")
	}
	if elapsed := robotsAt.Sub(start); elapsed < delay {
		t.Errorf("robots.txt在延迟结束前被请求: %v < %v", elapsed, delay)
	}
	if site.hitCount("/") != 1 {
		t.Errorf("/ = %d, want 1", site.hitCount("/"))
	}
}

func TestEngine_FilteredOutcomeLoggedAtInfo(t *testing.T) {
	var buf syncBuffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	site := newTestSite(t, map[string]string{"/": "<p>only</p>"}, 0)
	stats := &Stats{}
	frontier := NewFrontier()
	frontier.Seed([]string{"https://other.example/page"})
	discovery := NewPageDiscovery(NewDomainPolicy(site.host()), frontier, NewBudget(0), nil, nil, stats)
	engine := NewEngine(fastEngineConfig(), frontier, testFetcher(nil), discovery, NewBudget(0), stats, logger)

	if err := runEngine(t, engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if engine.Stats().Filtered != 1 {
		t.Errorf("Filtered = %d, want 1", engine.Stats().Filtered)
	}
	out := buf.String()
	if !strings.Contains(out, "跳过非目标域名URL") || !strings.Contains(out, `"outcome":"filtered_out"`) {
		t.Errorf("INFO日志缺少过滤记录: %s", out)
	}
}

// syncBuffer 供多个worker并发写日志
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEngine_ProgressCallback(t *testing.T) {
	site := newTestSite(t, map[string]string{"/": "<p>only</p>"}, 0)

	var mu sync.Mutex
	var last Progress
	ticks := 0
	f := newPageFixture(t, site, 0, fastEngineConfig(),
		WithProgress(func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			last = p
			ticks++
		}),
		WithResourceMonitor(NewResourceMonitor(1, zerolog.Nop())),
	)

	if err := runEngine(t, f.engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ticks < 2 || last.Crawled != 1 || last.Queued != 0 {
		t.Errorf("ticks = %d, last = %+v", ticks, last)
	}
}

func TestEngine_EmptyFrontier(t *testing.T) {
	budget := NewBudget(0)
	stats := &Stats{}
	engine := NewEngine(fastEngineConfig(), NewFrontier(), testFetcher(nil), NewAttachmentDiscovery(nil, stats), budget, stats, zerolog.Nop())
	if err := engine.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestMonitor_IdleRequiresTwoTicks(t *testing.T) {
	frontier := NewFrontier()
	budget := NewBudget(0)
	stats := &Stats{}
	m := NewMonitor(time.Second, budget, frontier, stats, zerolog.Nop())

	idle := 0
	if m.tick(&idle) {
		t.Fatal("未处理任何URL时不应结束")
	}

	stats.processed.Add(1)
	if m.tick(&idle) {
		t.Fatal("第一次空闲采样不应结束")
	}
	frontier.Offer("https://x.org/new")
	if m.tick(&idle) || idle != 0 {
		t.Fatal("队列非空时应重置空闲计数")
	}

	url, _ := frontier.TryDequeue(context.Background(), time.Second)
	frontier.MarkVisited(url)
	frontier.Done()
	if m.tick(&idle) {
		t.Fatal("重新空闲后的第一次采样不应结束")
	}
	if !m.tick(&idle) {
		t.Error("连续两次空闲采样后应结束")
	}
}

func TestMonitor_BudgetExhausted(t *testing.T) {
	frontier := NewFrontier()
	frontier.Seed([]string{"https://x.org/"})
	budget := NewBudget(1)
	budget.TryCommit()
	m := NewMonitor(time.Second, budget, frontier, &Stats{}, zerolog.Nop())

	idle := 0
	if !m.tick(&idle) {
		t.Error("预算用完时应立即结束")
	}
}

func TestResourceMonitor_Check(t *testing.T) {
	rm := NewResourceMonitor(0, zerolog.Nop())
	status := rm.Check(7)
	if status.QueueDepth != 7 || status.HeapAlloc == 0 {
		t.Errorf("status = %+v", status)
	}
	if status.Pressure != PressureNormal && status.Pressure != PressureWarning && status.Pressure != PressureCritical {
		t.Errorf("未知压力等级: %q", status.Pressure)
	}
}

var _ Discovery = (*PageDiscovery)(nil)
var _ Discovery = (*AttachmentDiscovery)(nil)
var _ PageRecorder = (*storage.PageLog)(nil)
var _ AttachmentRecorder = (*storage.AttachmentLog)(nil)
