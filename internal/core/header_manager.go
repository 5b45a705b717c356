package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/MovieCrawler/internal/config"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/119.0.0.0 Safari/537.36"
)

// HeaderManager 管理反爬设置中的请求头部
// 实现 models.HeaderProvider 接口
type HeaderManager struct {
	mu sync.RWMutex

	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// profile 反爬设置中的自定义请求头
	profile http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	// settings 当前反爬设置
	settings models.AntiCrawlerConfig

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
	loader    *config.AntiCrawlerLoader

	// loaded 标记设置是否已加载
	loaded bool
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - loader: 反爬设置加载器 (为nil时使用默认路径)
//   - cliHeaders: 命令行传递的头部字符串列表
//
// 返回: 命令行参数解析失败时返回错误
func NewHeaderManager(loader *config.AntiCrawlerLoader, cliHeaders []string) (*HeaderManager, error) {
	if loader == nil {
		loader = config.NewAntiCrawlerLoader("")
	}
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		profile:   make(http.Header),
		cli:       make(http.Header),
		settings:  models.DefaultAntiCrawlerConfig(),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
		loader:    loader,
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"*/*"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// LoadConfig 加载反爬设置
// 如果已加载则跳过
func (hm *HeaderManager) LoadConfig() error {
	hm.mu.RLock()
	loaded := hm.loaded
	hm.mu.RUnlock()
	if loaded {
		return nil
	}
	return hm.Reload()
}

// Reload 重新从文件加载反爬设置
func (hm *HeaderManager) Reload() error {
	cfg, err := hm.loader.Load()
	if err != nil {
		utils.Errorf("加载反爬设置失败: %v", err)
		return err
	}
	return hm.apply(cfg)
}

// apply 使用给定设置更新自定义请求头
func (hm *HeaderManager) apply(cfg models.AntiCrawlerConfig) error {
	profile, err := models.ParseHeaderLines(cfg.CustomHeaders)
	if err != nil {
		return err
	}

	hm.mu.Lock()
	hm.settings = cfg
	hm.profile = profile
	hm.loaded = true
	hm.mu.Unlock()

	if len(profile) > 0 {
		utils.Debugf("成功加载%d个自定义请求头: %s", len(profile), hm.redactor.RedactToString(profile))
	}
	return nil
}

// Settings 返回当前反爬设置
func (hm *HeaderManager) Settings() (models.AntiCrawlerConfig, error) {
	if err := hm.LoadConfig(); err != nil {
		return models.AntiCrawlerConfig{}, err
	}
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return hm.settings, nil
}

// SaveSettings 校验并保存反爬设置
// 自定义请求头必须通过RFC 7230校验,失败时不写入文件
func (hm *HeaderManager) SaveSettings(cfg models.AntiCrawlerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	profile, err := models.ParseHeaderLines(cfg.CustomHeaders)
	if err != nil {
		return err
	}
	if err := hm.validator.Validate(profile); err != nil {
		return err
	}

	if err := hm.loader.Save(cfg); err != nil {
		return err
	}
	return hm.apply(cfg)
}

// ResetSettings 恢复默认反爬设置
func (hm *HeaderManager) ResetSettings() (models.AntiCrawlerConfig, error) {
	cfg, err := hm.loader.Reset()
	if err != nil {
		return models.AntiCrawlerConfig{}, err
	}
	if err := hm.apply(cfg); err != nil {
		return models.AntiCrawlerConfig{}, err
	}
	utils.Info("反爬设置已恢复默认值")
	return cfg, nil
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 反爬设置 → 命令行
func (hm *HeaderManager) Validate() error {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.profile); err != nil {
		utils.Errorf("自定义请求头验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < profile < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(http.Header)
	for name, values := range hm.defaults {
		result[name] = append([]string(nil), values...)
	}
	for name, values := range hm.profile {
		result[name] = append([]string(nil), values...)
	}
	for name, values := range hm.cli {
		result[name] = append([]string(nil), values...)
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志和API)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.LoadConfig(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}

var _ models.HeaderProvider = (*HeaderManager)(nil)
