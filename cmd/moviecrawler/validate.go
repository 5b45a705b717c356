package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
)

// ValidateAddr 验证监听地址
func ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("监听地址不能为空")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("无效的监听地址 %q: %w", addr, err)
	}
	return nil
}

// ValidateImportFlags 验证批量导入参数
func ValidateImportFlags(quality string, batchDelay int) error {
	if _, err := models.ParseQuality(quality); err != nil {
		return err
	}

	// 验证间隔
	if batchDelay < 0 || batchDelay > 60000 {
		return fmt.Errorf("导入间隔必须在0-60000毫秒之间,当前值: %d", batchDelay)
	}
	return nil
}

// ValidateStatusFilter 验证任务状态过滤条件
func ValidateStatusFilter(status string) error {
	if status == "" {
		return nil
	}
	if !models.TaskStatus(status).IsValid() {
		valid := make([]string, len(models.AllTaskStatuses))
		for i, s := range models.AllTaskStatuses {
			valid[i] = string(s)
		}
		return fmt.Errorf("无效的任务状态: %s (有效值: %s)", status, strings.Join(valid, ", "))
	}
	return nil
}

// NormalizeURL 规范化URL
// 没有协议时默认使用https
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	normalized := parsed.String()
	if err := models.ValidateURL(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
