package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, level string) (string, *bytes.Buffer) {
	t.Helper()
	tempDir := t.TempDir()
	console := &bytes.Buffer{}

	config := DefaultLogConfig()
	config.Level = level
	config.LogDir = tempDir
	config.Compress = false
	config.Console = console

	logger, closer, err := NewLogger(config)
	if err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	logger.Info().Str("url", "https://x.org/a").Msg("这是一条中文日志消息")
	logger.Debug().Msg("调试日志")
	logger.Warn().Msg("警告日志")
	logger.Error().Msg("错误日志")

	if err := closer.Close(); err != nil {
		t.Fatalf("关闭日志文件失败: %v", err)
	}
	return tempDir, console
}

func TestNewLogger(t *testing.T) {
	tempDir, _ := newTestLogger(t, "info")

	content, err := os.ReadFile(filepath.Join(tempDir, MainLogName))
	if err != nil {
		t.Fatalf("读取主日志文件失败: %v", err)
	}

	text := string(content)
	if !strings.Contains(text, "这是一条中文日志消息") {
		t.Error("主日志缺少中文信息日志")
	}
	if !strings.Contains(text, `"url":"https://x.org/a"`) {
		t.Error("主日志缺少结构化字段")
	}
	if strings.Contains(text, "调试日志") {
		t.Error("info级别下不应写入调试日志")
	}
}

func TestNewLogger_LevelRouting(t *testing.T) {
	tempDir, console := newTestLogger(t, "debug")

	errContent, err := os.ReadFile(filepath.Join(tempDir, ErrorLogName))
	if err != nil {
		t.Fatalf("读取错误日志文件失败: %v", err)
	}
	if strings.Contains(string(errContent), "警告日志") {
		t.Error("错误日志不应包含警告级别")
	}
	if !strings.Contains(string(errContent), "错误日志") {
		t.Error("错误日志缺少错误级别记录")
	}

	if strings.Contains(console.String(), "这是一条中文日志消息") {
		t.Error("控制台默认只输出warn及以上")
	}
	if !strings.Contains(console.String(), "警告日志") {
		t.Error("控制台缺少警告日志")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.ConsoleLevel != "warn" {
		t.Errorf("默认控制台级别错误: 期望 'warn', 得到 '%s'", config.ConsoleLevel)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
