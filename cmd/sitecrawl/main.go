package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/RecoveryAshes/SiteCrawl/internal/config"
	"github.com/RecoveryAshes/SiteCrawl/internal/core"
	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/RecoveryAshes/SiteCrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile     string
	logLevel       string
	headers        []string
	validateConfig bool
	forceInit      bool
	workers        int
	delay          time.Duration
	maxPages       int

	// 页面模式参数
	pageURLs     []string
	pageSeedFile string
	domain       string
	saveDir      string
	pageLogFile  string
	robots       bool
	maxRPS       float64

	// 附件模式参数
	attachmentURLs     []string
	attachmentSeedFile string
	attachmentOutput   string
)

var rootCmd = &cobra.Command{
	Use:   "sitecrawl",
	Short: "限定域名的并发网站爬取工具",
	Long: `SiteCrawl - 限定域名的并发网站爬取工具

两种运行模式:
  • pages        从种子出发爬取目标域名(含子域名)下的所有页面, 保存HTML并记录到CSV
  • attachments  扫描种子页面中的附件链接(.pdf .doc .docx .xls .xlsx), 记录到CSV

示例:
  # 爬取整个站点, 最多1000页
  sitecrawl pages -u https://www.example.org/ -n 1000

  # 用页面模式的输出作为种子发现附件
  sitecrawl attachments -f data/webpages.csv

  # 自定义请求头
  sitecrawl pages -u https://example.org/ -H "Cookie: session=xxx"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig(cmd)
		}
		return cmd.Help()
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "爬取目标域名下的所有页面",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, models.ModePages)
	},
}

var attachmentsCmd = &cobra.Command{
	Use:   "attachments",
	Short: "从种子页面中发现附件链接",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, models.ModeAttachments)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = appconfig.DefaultConfigFile
		}
		if err := appconfig.WriteTemplate(path, forceInit); err != nil {
			return err
		}
		fmt.Printf("✅ 已生成配置文件: %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// runCrawl 加载配置、初始化日志并执行一次爬取
func runCrawl(cmd *cobra.Command, mode models.CrawlMode) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := ApplyFlags(cmd, config, mode); err != nil {
		return err
	}

	logger, closer, err := utils.NewLogger(config.LogConfig())
	if err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	defer closer.Close()

	headerManager, err := core.NewHeaderManager(config.Crawl, config.Headers, headers, logger)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	crawler, err := core.NewCrawler(config, mode, headerManager, logger)
	if err != nil {
		return DescribeValidationError(err)
	}

	// Ctrl+C: 停止派发新URL, 等待在途请求结束后输出统计
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 开始爬取 (模式: %s, 并发: %d)\n", mode, config.Crawl.Workers)
	report, err := crawler.Run(ctx)
	if report != nil {
		printSummary(report, crawler.ReportPath(), config.LogConfig().LogDir)
	}
	if err != nil {
		logger.Error().Err(err).Msg("爬取失败")
		return fmt.Errorf("爬取失败: %w", err)
	}
	return nil
}

// runValidateConfig 验证配置文件和HTTP头部, 打印脱敏后的有效头部
func runValidateConfig(cmd *cobra.Command) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := ApplyFlags(cmd, config, models.ModePages); err != nil {
		return err
	}
	if err := config.Crawl.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", DescribeValidationError(err))
	}

	logger, closer, err := utils.NewLogger(config.LogConfig())
	if err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	defer closer.Close()

	headerManager, err := core.NewHeaderManager(config.Crawl, config.Headers, headers, logger)
	if err != nil {
		return err
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", DescribeValidationError(err))
	}

	safeHeaders := headerManager.GetSafeHeaders()
	fmt.Println("✅ 配置验证通过!")
	fmt.Printf("当前有效的HTTP头部 (%d个):\n", len(safeHeaders))
	for name, value := range safeHeaders {
		fmt.Printf("  %s: %s\n", name, value)
	}
	return nil
}

func printSummary(report *models.CrawlReport, reportPath, logDir string) {
	stats := report.Stats
	fmt.Println("\n==================================================")
	if report.Status == models.TaskStatusCancelled {
		fmt.Println("⚠️  爬取被中断")
	} else {
		fmt.Println("📊 爬取统计")
	}
	fmt.Println("==================================================")
	fmt.Printf("⏱️  总耗时: %.2f秒\n", report.Duration)
	fmt.Printf("✅ 成功页面: %d\n", stats.Crawled)
	fmt.Printf("🔗 已处理URL: %d (过滤 %d, 非HTML %d)\n", stats.Processed, stats.Filtered, stats.NotHTML)
	if report.Mode == models.ModeAttachments {
		fmt.Printf("📎 附件记录: %d\n", stats.Attachments)
	} else {
		fmt.Printf("🆕 新发现链接: %d\n", stats.NewLinks)
	}
	fmt.Printf("❌ 失败: HTTP %d, 超时 %d, 网络 %d, 重定向 %d\n",
		stats.HTTPErrors, stats.Timeouts, stats.NetworkErrors, stats.RedirectErrors)
	if stats.QueueDepth > 0 {
		fmt.Printf("📥 未处理队列: %d\n", stats.QueueDepth)
	}
	fmt.Printf("📄 记录日志: %s\n", report.RecordLog)
	if report.PagesDir != "" {
		fmt.Printf("📁 页面目录: %s\n", report.PagesDir)
	}
	if reportPath != "" {
		fmt.Printf("📋 报告: %s\n", reportPath)
	}
	fmt.Printf("📝 运行日志: %s\n", logDir)
	fmt.Println("==================================================")
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "t", 10, "并发worker数 (1-200)")
	rootCmd.PersistentFlags().DurationVar(&delay, "delay", 500*time.Millisecond, "每个worker每次请求前的等待时间")
	rootCmd.PersistentFlags().IntVarP(&maxPages, "max-pages", "n", 0, "最多成功爬取的页面数, 0表示不限")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 页面模式参数
	pagesCmd.Flags().StringSliceVarP(&pageURLs, "url", "u", nil, "种子URL, 可多次指定")
	pagesCmd.Flags().StringVarP(&pageSeedFile, "seed-file", "f", "", "种子URL文件(每行一个URL, 或带URL列的CSV)")
	pagesCmd.Flags().StringVarP(&domain, "domain", "d", "", "目标域名后缀, 默认取第一个种子的主机名")
	pagesCmd.Flags().StringVarP(&saveDir, "save-dir", "o", "", "HTML保存目录")
	pagesCmd.Flags().StringVar(&pageLogFile, "log-file", "", "页面记录CSV路径")
	pagesCmd.Flags().BoolVar(&robots, "robots", false, "遵守robots.txt")
	pagesCmd.Flags().Float64Var(&maxRPS, "max-rps", 0, "全局每秒请求上限, 0表示不限")

	// 附件模式参数
	attachmentsCmd.Flags().StringSliceVarP(&attachmentURLs, "url", "u", nil, "种子页面URL, 可多次指定")
	attachmentsCmd.Flags().StringVarP(&attachmentSeedFile, "seed-file", "f", "", "种子文件, 默认使用页面模式的记录CSV")
	attachmentsCmd.Flags().StringVarP(&attachmentOutput, "output", "o", "", "附件记录CSV路径")

	initCmd.Flags().BoolVar(&forceInit, "force", false, "覆盖已存在的配置文件")

	rootCmd.AddCommand(pagesCmd, attachmentsCmd, initCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
