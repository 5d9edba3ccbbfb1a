package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	appconfig "github.com/RecoveryAshes/SiteCrawl/internal/config"
	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/RecoveryAshes/SiteCrawl/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 SITECRAWL_CRAWL_WORKERS
const EnvPrefix = "SITECRAWL"

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig `mapstructure:"crawl"`
	Headers  map[string]string  `mapstructure:"headers"`
	Output   OutputConfig       `mapstructure:"output"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Resource ResourceConfig     `mapstructure:"resource"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	PagesDir      string `mapstructure:"pages_dir"`      // 页面模式HTML保存目录
	PageLog       string `mapstructure:"page_log"`       // 页面模式记录
	AttachmentLog string `mapstructure:"attachment_log"` // 附件模式记录
	ReportDir     string `mapstructure:"report_dir"`     // JSON报告目录
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level        string         `mapstructure:"level"`
	ConsoleLevel string         `mapstructure:"console_level"`
	LogDir       string         `mapstructure:"log_dir"`
	Rotation     RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceConfig 资源监控配置
type ResourceConfig struct {
	MemoryWarnMB int  `mapstructure:"memory_warn_mb"` // 可用内存低于该值时告警
	Progress     bool `mapstructure:"progress"`       // 是否显示进度条
}

// LoadConfig 加载配置文件
// configPath为空时在./configs、当前目录和~/.sitecrawl中查找config.yaml,
// 找不到则使用默认值。环境变量优先于配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		// 显式指定的配置文件必须存在
		if err := appconfig.ValidateFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitecrawl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: err}
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.workers", 10)
	v.SetDefault("crawl.delay", 500*time.Millisecond)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.domain_suffix", "")
	v.SetDefault("crawl.seeds", []string{})
	v.SetDefault("crawl.seed_file", "")
	v.SetDefault("crawl.dequeue_timeout", 5*time.Second)
	v.SetDefault("crawl.poll_interval", time.Second)
	v.SetDefault("crawl.connect_timeout", 3*time.Second)
	v.SetDefault("crawl.read_timeout", 8*time.Second)
	v.SetDefault("crawl.max_redirects", 10)
	v.SetDefault("crawl.max_body_bytes", int64(10<<20))
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.max_rps", 0.0)
	v.SetDefault("crawl.user_agent", DefaultUserAgent)
	v.SetDefault("crawl.accept_language", DefaultAcceptLanguage)

	// 输出配置默认值
	v.SetDefault("output.pages_dir", "data/pages")
	v.SetDefault("output.page_log", "data/webpages.csv")
	v.SetDefault("output.attachment_log", "data/filepages.csv")
	v.SetDefault("output.report_dir", "data/reports")

	// 日志配置默认值
	logDefaults := utils.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console_level", logDefaults.ConsoleLevel)
	v.SetDefault("logging.log_dir", logDefaults.LogDir)
	v.SetDefault("logging.rotation.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.rotation.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.rotation.max_age", logDefaults.MaxAge)
	v.SetDefault("logging.rotation.compress", logDefaults.Compress)

	// 资源监控默认值
	v.SetDefault("resource.memory_warn_mb", 512)
	v.SetDefault("resource.progress", true)
}

// LogConfig 转换为日志器配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:        c.Logging.Level,
		ConsoleLevel: c.Logging.ConsoleLevel,
		LogDir:       c.Logging.LogDir,
		MaxSize:      c.Logging.Rotation.MaxSize,
		MaxBackups:   c.Logging.Rotation.MaxBackups,
		MaxAge:       c.Logging.Rotation.MaxAge,
		Compress:     c.Logging.Rotation.Compress,
	}
}

// RecordLogPath 指定模式的记录日志路径
func (c *Config) RecordLogPath(mode models.CrawlMode) string {
	if mode == models.ModeAttachments {
		return c.Output.AttachmentLog
	}
	return c.Output.PageLog
}
