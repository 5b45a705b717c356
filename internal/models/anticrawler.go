package models

import "fmt"

// DefaultCustomHeaders 默认自定义请求头
const DefaultCustomHeaders = `User-Agent: Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36
Accept: text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7
Accept-Language: zh-CN,zh;q=0.9,en;q=0.8
Referer: https://www.google.com/`

// 数值范围 (与设置表单的min/max一致)
const (
	MinCrawlDelay = 500
	MaxCrawlDelay = 10000
	MinRetries    = 1
	MaxRetries    = 10
	MinRetryDelay = 1000
	MaxRetryDelay = 30000
)

// AntiCrawlerConfig 反爬设置
type AntiCrawlerConfig struct {
	// 基础反爬设置
	UserAgentRotation bool `json:"userAgentRotation" mapstructure:"user_agent_rotation" yaml:"user_agent_rotation"` // 随机User-Agent
	RandomDelay       bool `json:"randomDelay" mapstructure:"random_delay" yaml:"random_delay"`                     // 随机访问延迟
	ProxyEnabled      bool `json:"proxyEnabled" mapstructure:"proxy_enabled" yaml:"proxy_enabled"`                  // 启用代理IP
	BypassCloudflare  bool `json:"bypassCloudflare" mapstructure:"bypass_cloudflare" yaml:"bypass_cloudflare"`      // 绕过Cloudflare

	// 自定义请求头 (多行 "Name: Value")
	CustomHeaders string `json:"customHeaders" mapstructure:"custom_headers" yaml:"custom_headers"`

	// 高级设置
	CrawlDelay int `json:"crawlDelay" mapstructure:"crawl_delay" yaml:"crawl_delay"` // 爬取间隔(毫秒)
	MaxRetries int `json:"maxRetries" mapstructure:"max_retries" yaml:"max_retries"` // 最大重试次数
	RetryDelay int `json:"retryDelay" mapstructure:"retry_delay" yaml:"retry_delay"` // 重试间隔(毫秒)
}

// DefaultAntiCrawlerConfig 返回默认反爬设置 ("重置"按钮的目标值)
func DefaultAntiCrawlerConfig() AntiCrawlerConfig {
	return AntiCrawlerConfig{
		UserAgentRotation: true,
		RandomDelay:       true,
		ProxyEnabled:      false,
		BypassCloudflare:  true,
		CustomHeaders:     DefaultCustomHeaders,
		CrawlDelay:        2000,
		MaxRetries:        3,
		RetryDelay:        5000,
	}
}

// Validate 验证反爬设置
func (c *AntiCrawlerConfig) Validate() error {
	if c.CrawlDelay < MinCrawlDelay || c.CrawlDelay > MaxCrawlDelay {
		return &ValidationError{
			Field:  "crawlDelay",
			Value:  fmt.Sprint(c.CrawlDelay),
			Reason: fmt.Sprintf("爬取间隔必须在%d-%d毫秒之间", MinCrawlDelay, MaxCrawlDelay),
		}
	}
	if c.MaxRetries < MinRetries || c.MaxRetries > MaxRetries {
		return &ValidationError{
			Field:  "maxRetries",
			Value:  fmt.Sprint(c.MaxRetries),
			Reason: fmt.Sprintf("最大重试次数必须在%d-%d之间", MinRetries, MaxRetries),
		}
	}
	if c.RetryDelay < MinRetryDelay || c.RetryDelay > MaxRetryDelay {
		return &ValidationError{
			Field:  "retryDelay",
			Value:  fmt.Sprint(c.RetryDelay),
			Reason: fmt.Sprintf("重试间隔必须在%d-%d毫秒之间", MinRetryDelay, MaxRetryDelay),
		}
	}
	if _, err := ParseHeaderLines(c.CustomHeaders); err != nil {
		return err
	}
	return nil
}
