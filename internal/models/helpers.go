package models

import (
	"net/url"
	"strings"
)

// ValidateURL 验证URL
// 返回: 空URL、无法解析、非HTTP(S)协议或缺少主机名时返回*ValidationError
func ValidateURL(urlStr string) error {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return &ValidationError{
			Field:  "url",
			Reason: "请输入有效的URL",
		}
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return &ValidationError{
			Field:      "url",
			Value:      urlStr,
			Reason:     "请输入有效的URL格式",
			Suggestion: "例如 https://example.com/movie/123",
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{
			Field:      "url",
			Value:      urlStr,
			Reason:     "URL必须是HTTP或HTTPS协议",
			Suggestion: "在地址前加上 https://",
		}
	}
	if parsed.Host == "" {
		return &ValidationError{
			Field:  "url",
			Value:  urlStr,
			Reason: "URL必须包含主机名",
		}
	}
	return nil
}

// stringPtr 返回字符串指针
func stringPtr(s string) *string {
	return &s
}
