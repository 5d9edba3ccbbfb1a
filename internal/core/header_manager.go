package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/RecoveryAshes/SiteCrawl/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultAcceptLanguage 默认Accept-Language
	DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

	defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// HeaderProvider 提供抓取使用的请求头部
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// HeaderManager 按优先级合并HTTP请求头部 (默认 < 配置文件 < 命令行)
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
	logger    zerolog.Logger
}

// NewHeaderManager 创建头部管理器
// 默认头部中的User-Agent和Accept-Language取自爬取配置,
// configHeaders来自配置文件的headers节, cliHeaders为 "Name: Value" 格式
func NewHeaderManager(crawl models.CrawlConfig, configHeaders map[string]string, cliHeaders []string, logger zerolog.Logger) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  defaultHeaders(crawl),
		config:    make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
		logger:    logger,
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	cli, err := parseCLIHeaders(cliHeaders)
	if err != nil {
		return nil, err
	}
	hm.cli = cli

	return hm, nil
}

// parseCLIHeaders 解析 -H 参数, 每项为 "Name: Value", 值中可以含冒号
func parseCLIHeaders(items []string) (http.Header, error) {
	result := make(http.Header)
	for i, item := range items {
		name, value, found := strings.Cut(item, ":")
		if !found {
			return nil, fmt.Errorf("参数 --header 第%d项缺少冒号, 应为 'Name: Value'", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("参数 --header 第%d项头部名称为空", i+1)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

func defaultHeaders(crawl models.CrawlConfig) http.Header {
	userAgent := crawl.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	acceptLanguage := crawl.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}

	headers := make(http.Header)
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", defaultAccept)
	headers.Set("Accept-Language", acceptLanguage)
	return headers
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	sources := []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	}
	for _, source := range sources {
		if err := hm.validator.Validate(source.headers); err != nil {
			return fmt.Errorf("%s头部验证失败: %w", source.name, err)
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 校验后返回合并的头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	merged := hm.GetMergedHeaders()
	hm.logger.Debug().Interface("headers", hm.redactor.Redact(merged)).Msg("HTTP头部验证通过")
	return merged, nil
}

var _ HeaderProvider = (*HeaderManager)(nil)
