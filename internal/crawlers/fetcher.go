package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// ErrorKind 抓取错误分类
type ErrorKind int

const (
	ErrKindNetwork ErrorKind = iota
	ErrKindTimeout
	ErrKindTooManyRedirects
	ErrKindHTTPStatus
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindTimeout:
		return "timeout"
	case ErrKindTooManyRedirects:
		return "too_many_redirects"
	case ErrKindHTTPStatus:
		return "http_status"
	default:
		return "network_error"
	}
}

// FetchError 抓取失败
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // 仅ErrKindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == ErrKindHTTPStatus {
		return fmt.Sprintf("抓取 %s 失败: HTTP状态码 %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("抓取 %s 失败 (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTooManyRedirects 超过最大重定向次数
var ErrTooManyRedirects = errors.New("重定向次数过多")

// Page 一次成功(200)抓取的结果, Body为解压后的原始字节
type Page struct {
	URL         string // 请求的URL
	FinalURL    string // 重定向后的URL
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time

	Truncated     bool  // 超过MaxBodyBytes被截断
	DecompressErr error // 解压失败时Body保留原始字节
}

// Fetcher 抓取接口
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// FetcherOptions 抓取器配置
type FetcherOptions struct {
	Headers        http.Header
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRedirects   int
	MaxBodyBytes   int64
}

// HTTPFetcher 基于net/http的抓取器
type HTTPFetcher struct {
	client  *http.Client
	headers http.Header
	opts    FetcherOptions
}

// NewHTTPFetcher 创建抓取器
func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}

	maxRedirects := opts.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	headers := opts.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	// 自行解压, 需要显式声明支持的编码
	headers.Set("Accept-Encoding", "gzip, deflate, br")

	return &HTTPFetcher{client: client, headers: headers, opts: opts}
}

// Fetch 执行一次GET
// 整个请求(含读取响应体)受ConnectTimeout+ReadTimeout约束; 非200返回ErrKindHTTPStatus。
// 压缩响应体超过MaxBodyBytes时返回ErrKindNetwork
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.ConnectTimeout+f.opts.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindNetwork, URL: rawURL, Err: err}
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Kind: ErrKindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, classifyError(rawURL, err)
	}

	page := &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
		FetchedAt:   time.Now(),
	}
	if int64(len(raw)) > f.opts.MaxBodyBytes {
		page.Body = raw[:f.opts.MaxBodyBytes]
		page.Truncated = true
	}

	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" {
		body, err := decompressBody(encoding, page.Body, f.opts.MaxBodyBytes)
		switch {
		case err != nil && page.Truncated:
			// 截断的压缩流无法还原, 原始字节不能当作HTML
			return nil, &FetchError{
				Kind: ErrKindNetwork,
				URL:  rawURL,
				Err:  fmt.Errorf("压缩响应体超过上限 %d 字节: %w", f.opts.MaxBodyBytes, err),
			}
		case err != nil:
			// 解压失败,仍然使用原始body
			page.DecompressErr = err
		default:
			page.Body = body
		}
	}
	return page, nil
}

// classifyError 把客户端错误归类为超时/重定向/网络错误
func classifyError(rawURL string, err error) *FetchError {
	kind := ErrKindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		kind = ErrKindTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrKindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrKindTimeout
	}
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

// decompressBody 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli), 解压结果不超过limit
func decompressBody(contentEncoding string, body []byte, limit int64) ([]byte, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// 按规范应为zlib封装, 部分服务器直接发送raw deflate
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			fl := flate.NewReader(bytes.NewReader(body))
			defer fl.Close()
			reader = fl
		}
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("不支持的压缩格式: %s", contentEncoding)
	}

	decompressed, err := io.ReadAll(io.LimitReader(reader, limit))
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", contentEncoding, err)
	}
	return decompressed, nil
}
