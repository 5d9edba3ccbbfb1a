package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志文件名
const (
	MainLogName  = "sitecrawl.log"
	ErrorLogName = "sitecrawl_error.log"
)

// LogConfig 日志配置
type LogConfig struct {
	Level        string    // 日志级别: trace, debug, info, warn, error
	ConsoleLevel string    // 控制台最低级别, 默认warn, 避免刷屏进度条
	LogDir       string    // 日志目录
	MaxSize      int       // 单个日志文件最大大小(MB)
	MaxBackups   int       // 保留的旧日志文件数量
	MaxAge       int       // 保留天数
	Compress     bool      // 是否压缩旧日志
	Console      io.Writer // 控制台输出, 为空时使用os.Stderr
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		ConsoleLevel: "warn",
		LogDir:       "logs",
		MaxSize:      10,
		MaxBackups:   3,
		MaxAge:       28,
		Compress:     true,
	}
}

// NewLogger 构建日志器
// 不设置任何全局状态, 调用方负责把返回的logger逐层传递下去,
// 并在退出前关闭返回的io.Closer以刷新轮转文件
func NewLogger(config LogConfig) (zerolog.Logger, io.Closer, error) {
	// 创建日志目录
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return zerolog.Nop(), nil, err
	}

	level := parseLevel(config.Level, zerolog.InfoLevel)
	consoleLevel := parseLevel(config.ConsoleLevel, zerolog.WarnLevel)

	// 主日志文件(带轮转)
	mainLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, MainLogName),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	// 错误日志文件(带轮转)
	errorLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, ErrorLogName),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	out := config.Console
	if out == nil {
		out = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	// 多输出配置:
	// 1. 控制台(仅consoleLevel及以上)
	// 2. 主日志文件(所有级别)
	// 3. 错误日志文件(仅错误及以上级别)
	multiWriter := zerolog.MultiLevelWriter(
		&FilteredWriter{Writer: consoleWriter, MinLevel: consoleLevel},
		mainLogFile,
		&FilteredWriter{Writer: errorLogFile, MinLevel: zerolog.ErrorLevel},
	)

	logger := zerolog.New(multiWriter).
		Level(level).
		With().
		Timestamp().
		Logger()

	logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")

	return logger, closers{mainLogFile, errorLogFile}, nil
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	if s == "" {
		return fallback
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return level
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FilteredWriter 过滤写入器,仅写入指定级别及以上的日志
// 需要配合zerolog.MultiLevelWriter使用, 否则拿不到级别信息
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 实现io.Writer接口, 无级别信息时直接写入
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return w.Writer.Write(p)
}

// WriteLevel 实现zerolog.LevelWriter接口
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}
