package utils

import (
	"net/http"
	"strings"
)

// SensitiveKeywords 敏感头部名称关键字
var SensitiveKeywords = []string{
	"authorization",
	"cookie",
	"token",
	"key",
	"secret",
	"password",
	"credential",
}

// HeaderRedactor 日志输出前对敏感头部脱敏
type HeaderRedactor struct {
	keywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{keywords: SensitiveKeywords}
}

// IsSensitiveHeader 根据名称关键字判断是否为敏感头部
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range hr.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个值
// Bearer令牌只保留前缀, 长值保留首尾各4位, 短值完全隐藏
func (hr *HeaderRedactor) RedactValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Redact 返回可安全写入日志的头部map
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactValue(name, values[0])
	}
	return result
}
