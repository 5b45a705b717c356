package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Store       StoreConfig       `mapstructure:"store"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	AntiCrawler AntiCrawlerConfig `mapstructure:"anticrawler"`
	Output      OutputConfig      `mapstructure:"output"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxConnections  int           `mapstructure:"max_connections"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Compression     bool          `mapstructure:"compression"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Console  bool           `mapstructure:"console"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// AnalysisConfig 分析模拟配置
type AnalysisConfig struct {
	DelayMS int `mapstructure:"delay_ms"`
}

// StoreConfig 任务存储配置
type StoreConfig struct {
	Seed         bool   `mapstructure:"seed"`
	SnapshotFile string `mapstructure:"snapshot_file"`
}

// MonitorConfig 资源监控配置
type MonitorConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	WarningThreshold  float64       `mapstructure:"warning_threshold"`
	CriticalThreshold float64       `mapstructure:"critical_threshold"`
}

// AntiCrawlerConfig 反爬设置文件位置
type AntiCrawlerConfig struct {
	ConfigFile string `mapstructure:"config_file"`
}

// OutputConfig 报告输出配置
type OutputConfig struct {
	ReportDir string `mapstructure:"report_dir"`
}

// LoadConfig 加载配置文件
// configPath 为空时按默认位置搜索,找不到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".moviecrawler"))
		}
	}

	// 环境变量覆盖, 如 MOVIECRAWLER_SERVER_ADDR
	v.SetEnvPrefix("MOVIECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultConfig 返回全部使用默认值的配置
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// 默认值全部是基础类型,不会解析失败
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务配置默认值
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.compression", true)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 分析模拟默认值
	v.SetDefault("analysis.delay_ms", 2000)

	// 任务存储默认值
	v.SetDefault("store.seed", true)
	v.SetDefault("store.snapshot_file", "")

	// 资源监控默认值
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", "5s")
	v.SetDefault("monitor.warning_threshold", 80.0)
	v.SetDefault("monitor.critical_threshold", 90.0)

	v.SetDefault("anticrawler.config_file", "configs/anticrawler.yaml")
	v.SetDefault("output.report_dir", "output/reports")
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections 不能为负数: %d", c.Server.MaxConnections)
	}
	if c.Analysis.DelayMS < 0 {
		return fmt.Errorf("analysis.delay_ms 不能为负数: %d", c.Analysis.DelayMS)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval 必须大于0")
	}
	if c.Monitor.WarningThreshold > c.Monitor.CriticalThreshold {
		return fmt.Errorf("monitor.warning_threshold (%.0f) 不能大于 critical_threshold (%.0f)",
			c.Monitor.WarningThreshold, c.Monitor.CriticalThreshold)
	}
	return nil
}

// AnalysisDelay 返回分析模拟的延迟
func (c *Config) AnalysisDelay() time.Duration {
	return time.Duration(c.Analysis.DelayMS) * time.Millisecond
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		Console:    c.Logging.Console,
	}
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件,零值表示未指定
func (c *Config) MergeCLIFlags(logLevel string, addr string, delayMS int, snapshotFile string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr != "" {
		c.Server.Addr = addr
	}
	if delayMS > 0 {
		c.Analysis.DelayMS = delayMS
	}
	if snapshotFile != "" {
		c.Store.SnapshotFile = snapshotFile
	}
}
