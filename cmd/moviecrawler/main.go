package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers []string // 覆盖反爬设置的请求头

	// 启动参数
	addr         string
	delayMS      int
	snapshotFile string
)

// appConfig 由PersistentPreRunE加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "moviecrawler",
	Short: "影视资源爬虫控制台",
	Long: `MovieCrawler - 影视资源爬虫控制台 (Go版本)

管理下载任务、模拟网站分析并维护反爬设置,支持:
  • HTTP API 服务
  • 终端控制面板
  • 任务列表的创建、暂停/继续、重试和删除
  • 网站分析 (模拟) 与一键创建任务
  • 批量导入URL
  • 自定义HTTP请求头

示例:
  # 启动API服务
  moviecrawler serve --addr :8080

  # 打开终端控制面板
  moviecrawler dashboard

  # 分析网址
  moviecrawler analyze https://example.com/movie/123

  # 通过命令行覆盖请求头
  moviecrawler serve -H "User-Agent: MyBot/1.0" -H "Cookie: session=abc"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		config.MergeCLIFlags(logLevel, addr, delayMS, snapshotFile)
		if verbose && logLevel == "" {
			config.Logging.Level = "debug"
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不需要加载配置
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MovieCrawler %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 影视资源爬虫控制台")
	},
}

// signalContext 返回收到SIGINT/SIGTERM时取消的上下文
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		utils.Warn("收到中断信号,正在优雅关闭...")
	}()
	return ctx, stop
}

// newDashboard 按当前配置组装控制面板,并在ctx有效期间运行资源监控
func newDashboard(ctx context.Context) (*core.Dashboard, func(), error) {
	dash, rm, err := core.NewDashboardFromConfig(appConfig, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("创建控制面板失败: %w", err)
	}

	cleanup := func() {}
	if rm != nil {
		rm.Start(ctx)
		cleanup = rm.Stop
	}
	return dash, cleanup, nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().IntVar(&delayMS, "analysis-delay", 0, "网站分析模拟耗时(毫秒),0表示使用配置值")
	rootCmd.PersistentFlags().StringVar(&snapshotFile, "snapshot", "", "任务快照文件,设置后任务变更自动保存")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
