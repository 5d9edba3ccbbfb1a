package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 由HTTP客户端或抓取器自行管理的头部
// Accept-Encoding决定了抓取器能否解压响应, 不允许覆盖
var ForbiddenHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Accept-Encoding",
}

// HeaderValidator 按RFC 7230校验HTTP头部
type HeaderValidator struct {
	forbidden map[string]bool
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[http.CanonicalHeaderKey(h)] = true
	}
	return &HeaderValidator{forbidden: forbidden}
}

// IsForbidden 检查头部是否被禁止
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbidden[http.CanonicalHeaderKey(name)]
}

// ValidateHeader 验证头部名称+值, 非法时返回*models.ValidationError
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return headerError(name, "头部名称不能为空", "")
	case hv.IsForbidden(name):
		return headerError(name, "此头部由HTTP客户端自动管理,不允许自定义", fmt.Sprintf("移除 '%s' 头部配置", name))
	case !httpguts.ValidHeaderFieldName(name):
		return headerError(name, "头部名称包含非法字符", "使用字母、数字和连字符 (如 'X-Custom-Header')")
	case len(value) > MaxHeaderValueLength:
		return headerError(name, fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), MaxHeaderValueLength), "")
	case !httpguts.ValidHeaderFieldValue(value):
		return headerError(name, "头部值包含控制字符", "移除换行符等控制字符")
	}
	return nil
}

func headerError(name, reason, suggestion string) *models.ValidationError {
	return &models.ValidationError{Section: "header", Field: name, Reason: reason, Suggestion: suggestion}
}

// Validate 验证http.Header中的所有头部, 返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
