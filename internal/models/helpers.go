package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证种子URL: 必须是带主机名的http/https地址
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// DeriveDomainSuffix 未配置域名后缀时, 由第一个种子的主机名推导
// 去掉端口和前导"www.", 结果为小写
func DeriveDomainSuffix(seed string) (string, error) {
	if err := ValidateURL(seed); err != nil {
		return "", err
	}
	parsed, _ := url.Parse(strings.TrimSpace(seed))
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www."), nil
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
