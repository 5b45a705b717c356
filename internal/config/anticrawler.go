package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认反爬设置文件路径
	DefaultConfigFile = "configs/anticrawler.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed anticrawler_template.yaml
var defaultAntiCrawlerTemplate string

// AntiCrawlerLoader 反爬设置加载器
// 负责加载、验证和保存反爬设置文件
type AntiCrawlerLoader struct {
	configPath string
	mu         sync.Mutex
}

// NewAntiCrawlerLoader 创建反爬设置加载器
func NewAntiCrawlerLoader(configPath string) *AntiCrawlerLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &AntiCrawlerLoader{
		configPath: configPath,
	}
}

// Path 返回配置文件路径
func (l *AntiCrawlerLoader) Path() string {
	return l.configPath
}

// EnsureConfigExists 确保配置文件存在,如不存在则自动生成模板
func (l *AntiCrawlerLoader) EnsureConfigExists() error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		dir := filepath.Dir(l.configPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(l.configPath, []byte(defaultAntiCrawlerTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", l.configPath, err)
		}
		utils.Infof("已生成默认反爬设置: %s", l.configPath)
	}
	return nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (l *AntiCrawlerLoader) ValidateFileSize() error {
	info, err := os.Stat(l.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: l.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// Load 加载反爬设置
// 执行流程:
//  1. 确保配置文件存在 (不存在则由模板生成)
//  2. 验证文件大小是否在限制内
//  3. 使用Viper解析YAML,缺失的键使用默认值
//  4. 绑定到AntiCrawlerConfig并校验取值范围
//
// 返回: 解析或校验失败时返回*models.ConfigError
func (l *AntiCrawlerLoader) Load() (models.AntiCrawlerConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.EnsureConfigExists(); err != nil {
		return models.AntiCrawlerConfig{}, err
	}

	if err := l.ValidateFileSize(); err != nil {
		return models.AntiCrawlerConfig{}, err
	}

	v := newAntiCrawlerViper()
	v.SetConfigFile(l.configPath)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程锁定时降级为默认设置
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认反爬设置", l.configPath)
			return models.DefaultAntiCrawlerConfig(), nil
		}

		return models.AntiCrawlerConfig{}, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	var cfg models.AntiCrawlerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return models.AntiCrawlerConfig{}, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	if err := cfg.Validate(); err != nil {
		return models.AntiCrawlerConfig{}, &models.ConfigError{
			FilePath: l.configPath,
			Cause:    err,
		}
	}

	return cfg, nil
}

// Save 校验并保存反爬设置
// 校验失败时返回*models.ValidationError,文件保持不变
func (l *AntiCrawlerLoader) Save(cfg models.AntiCrawlerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.configPath), 0755); err != nil {
		return fmt.Errorf("无法创建配置目录: %w", err)
	}

	v := newAntiCrawlerViper()
	v.Set("user_agent_rotation", cfg.UserAgentRotation)
	v.Set("random_delay", cfg.RandomDelay)
	v.Set("proxy_enabled", cfg.ProxyEnabled)
	v.Set("bypass_cloudflare", cfg.BypassCloudflare)
	v.Set("custom_headers", cfg.CustomHeaders)
	v.Set("crawl_delay", cfg.CrawlDelay)
	v.Set("max_retries", cfg.MaxRetries)
	v.Set("retry_delay", cfg.RetryDelay)

	if err := v.WriteConfigAs(l.configPath); err != nil {
		return fmt.Errorf("保存反爬设置失败 [%s]: %w", l.configPath, err)
	}

	utils.Logger.Info().
		Str("path", l.configPath).
		Int("crawl_delay", cfg.CrawlDelay).
		Int("max_retries", cfg.MaxRetries).
		Int("retry_delay", cfg.RetryDelay).
		Msg("反爬设置已保存")
	return nil
}

// Reset 恢复默认反爬设置并写入文件
func (l *AntiCrawlerLoader) Reset() (models.AntiCrawlerConfig, error) {
	cfg := models.DefaultAntiCrawlerConfig()
	if err := l.Save(cfg); err != nil {
		return models.AntiCrawlerConfig{}, err
	}
	return cfg, nil
}

// newAntiCrawlerViper 创建带默认值的viper实例
func newAntiCrawlerViper() *viper.Viper {
	def := models.DefaultAntiCrawlerConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("user_agent_rotation", def.UserAgentRotation)
	v.SetDefault("random_delay", def.RandomDelay)
	v.SetDefault("proxy_enabled", def.ProxyEnabled)
	v.SetDefault("bypass_cloudflare", def.BypassCloudflare)
	v.SetDefault("custom_headers", def.CustomHeaders)
	v.SetDefault("crawl_delay", def.CrawlDelay)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("retry_delay", def.RetryDelay)
	return v
}
