package models

import "fmt"

// ValidationError 参数校验失败
// Section为所属配置节 ("crawl" 或 "header"), Field为该节下的键,
// 头部校验时Field即头部名称
type ValidationError struct {
	Section    string
	Field      string
	Value      string // 出错的值, 头部值可能含凭据, 不填
	Reason     string
	Suggestion string
}

// Key 点分形式的配置键, 如 crawl.workers
func (e *ValidationError) Key() string {
	if e.Section == "" {
		return e.Field
	}
	return e.Section + "." + e.Field
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("参数校验失败 [%s", e.Key())
	if e.Value != "" {
		msg += "=" + e.Value
	}
	msg += "]: " + e.Reason
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件无法读取或解析
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
