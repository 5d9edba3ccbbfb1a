package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/SiteCrawl/internal/core"
	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/spf13/cobra"
)

// ApplyFlags 把显式指定的命令行参数合并到配置, 未指定的参数不覆盖配置文件
func ApplyFlags(cmd *cobra.Command, config *core.Config, mode models.CrawlMode) error {
	// 子命令的Flags()在解析前不含父命令的持久参数
	flags := cmd.Flags()
	flags.AddFlagSet(cmd.InheritedFlags())
	crawl := &config.Crawl

	if flags.Changed("log-level") {
		config.Logging.Level = logLevel
	}
	if flags.Changed("workers") {
		crawl.Workers = workers
	}
	if flags.Changed("delay") {
		crawl.Delay = delay
	}
	if flags.Changed("max-pages") {
		crawl.MaxPages = maxPages
	}

	var urls []string
	switch mode {
	case models.ModePages:
		urls = pageURLs
		if flags.Changed("seed-file") {
			crawl.SeedFile = pageSeedFile
		}
		if flags.Changed("domain") {
			crawl.DomainSuffix = domain
		}
		if flags.Changed("save-dir") {
			config.Output.PagesDir = saveDir
		}
		if flags.Changed("log-file") {
			config.Output.PageLog = pageLogFile
		}
		if flags.Changed("robots") {
			crawl.RespectRobots = robots
		}
		if flags.Changed("max-rps") {
			crawl.MaxRPS = maxRPS
		}
	case models.ModeAttachments:
		urls = attachmentURLs
		if flags.Changed("seed-file") {
			crawl.SeedFile = attachmentSeedFile
		}
		if flags.Changed("output") {
			config.Output.AttachmentLog = attachmentOutput
		}
	}

	if flags.Changed("url") {
		seeds := make([]string, 0, len(urls))
		for _, u := range urls {
			normalized, err := NormalizeURL(u)
			if err != nil {
				return fmt.Errorf("无效的种子URL: %w", err)
			}
			seeds = append(seeds, normalized)
		}
		crawl.Seeds = seeds
	}

	return nil
}

// NormalizeURL 规范化命令行输入的URL, 缺少协议时补https
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	if err := models.ValidateURL(urlStr); err != nil {
		return "", err
	}
	return urlStr, nil
}

// flagForKey 可由命令行覆盖的配置项
var flagForKey = map[string]string{
	"crawl.workers":   "--workers/-t",
	"crawl.delay":     "--delay",
	"crawl.max_pages": "--max-pages/-n",
	"crawl.max_rps":   "--max-rps",
}

// DescribeValidationError 给参数校验错误补上修改途径, 其他错误原样返回
func DescribeValidationError(err error) error {
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	if ve.Section == "header" {
		return fmt.Errorf("%w (检查 --header/-H 或配置文件的 headers 节)", err)
	}
	if flag, ok := flagForKey[ve.Key()]; ok {
		return fmt.Errorf("%w (通过 %s 或配置项 %s 修改)", err, flag, ve.Key())
	}
	return fmt.Errorf("%w (检查配置项 %s)", err, ve.Key())
}
