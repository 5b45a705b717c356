package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/MovieCrawler/internal/config"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/monitor"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

// ErrLinkNotFound 分析结果中不存在该资源
var ErrLinkNotFound = errors.New("分析结果中不存在该资源")

// DashboardSnapshot 控制面板读取的完整状态
type DashboardSnapshot struct {
	Tasks     []models.Task          `json:"tasks"`
	Analysis  *models.AnalysisResult `json:"analysis"`
	Analyzing bool                   `json:"analyzing"`
	Stats     models.DashboardStats  `json:"stats"`
}

// Dashboard 控制面板
// 聚合任务存储、分析模拟器、反爬设置和监控数据,供HTTP和终端界面调用
type Dashboard struct {
	store    *TaskStore
	analyzer *Analyzer
	headers  *HeaderManager
	monitor  *monitor.Builder

	mu        sync.Mutex
	listeners []func()
}

// NewDashboard 创建控制面板
// headers 和 builder 可以为nil,对应功能返回默认数据
func NewDashboard(store *TaskStore, analyzer *Analyzer, headers *HeaderManager, builder *monitor.Builder) *Dashboard {
	if builder == nil {
		builder = monitor.NewBuilder(nil)
	}
	d := &Dashboard{
		store:    store,
		analyzer: analyzer,
		headers:  headers,
		monitor:  builder,
	}
	store.Subscribe(func(StoreEvent) { d.changed() })
	analyzer.addHook(func(*AnalysisHandle) { d.changed() })
	return d
}

// NewDashboardFromConfig 按配置组装控制面板
// 返回的ResourceMonitor需要调用方Start/Stop,监控关闭时为nil
func NewDashboardFromConfig(cfg *Config, cliHeaders []string) (*Dashboard, *monitor.ResourceMonitor, error) {
	var opts []StoreOption
	if cfg.Store.Seed {
		opts = append(opts, WithSeed(models.SeedTasks()))
	}
	store := NewTaskStore(opts...)

	if path := cfg.Store.SnapshotFile; path != "" {
		if err := store.LoadSnapshot(path); err != nil {
			utils.Warnf("未能恢复任务快照,使用初始任务: %v", err)
		}
		store.Subscribe(func(StoreEvent) {
			if err := store.SaveSnapshot(path); err != nil {
				utils.Error(err, "自动保存任务快照失败")
			}
		})
	}

	headers, err := NewHeaderManager(config.NewAntiCrawlerLoader(cfg.AntiCrawler.ConfigFile), cliHeaders)
	if err != nil {
		return nil, nil, err
	}

	var rm *monitor.ResourceMonitor
	var builder *monitor.Builder
	if cfg.Monitor.Enabled {
		rm = monitor.NewResourceMonitor(monitor.Config{
			Interval:          cfg.Monitor.Interval,
			WarningThreshold:  cfg.Monitor.WarningThreshold,
			CriticalThreshold: cfg.Monitor.CriticalThreshold,
		})
		builder = monitor.NewBuilder(rm)
	}

	d := NewDashboard(store, NewAnalyzer(cfg.AnalysisDelay()), headers, builder)
	return d, rm, nil
}

// Store 返回任务存储
func (d *Dashboard) Store() *TaskStore {
	return d.store
}

// Analyzer 返回分析模拟器
func (d *Dashboard) Analyzer() *Analyzer {
	return d.analyzer
}

// OnChange 注册状态变化回调 (任务变更、分析完成或取消)
func (d *Dashboard) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Dashboard) changed() {
	d.mu.Lock()
	listeners := append([]func(){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Snapshot 返回当前状态
func (d *Dashboard) Snapshot() DashboardSnapshot {
	tasks := d.store.Tasks()
	return DashboardSnapshot{
		Tasks:     tasks,
		Analysis:  d.analyzer.Last(),
		Analyzing: d.analyzer.Busy(),
		Stats:     models.CountTasks(tasks),
	}
}

// CreateTask 创建任务
func (d *Dashboard) CreateTask(input models.CreateTaskInput) (models.Task, error) {
	return d.store.CreateTask(input)
}

// ToggleTaskStatus 切换任务状态
func (d *Dashboard) ToggleTaskStatus(id int) (models.Task, bool) {
	return d.store.ToggleTaskStatus(id)
}

// DeleteTask 删除任务
func (d *Dashboard) DeleteTask(id int) bool {
	return d.store.DeleteTask(id)
}

// RetryTask 重试任务
func (d *Dashboard) RetryTask(id int) bool {
	return d.store.RetryTask(id)
}

// AnalyzeURL 开始分析URL
func (d *Dashboard) AnalyzeURL(ctx context.Context, rawURL string) (*AnalysisHandle, error) {
	h, err := d.analyzer.Analyze(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	d.changed()
	return h, nil
}

// CancelAnalysis 取消进行中的分析
func (d *Dashboard) CancelAnalysis() bool {
	return d.analyzer.CancelCurrent()
}

// CreateTaskFromLink 用最近一次分析结果中的第index个资源创建任务
func (d *Dashboard) CreateTaskFromLink(index int) (models.Task, error) {
	result := d.analyzer.Last()
	if result == nil {
		return models.Task{}, fmt.Errorf("%w: 尚未完成任何分析", ErrLinkNotFound)
	}
	if index < 0 || index >= len(result.FoundLinks) {
		return models.Task{}, fmt.Errorf("%w: 序号 %d", ErrLinkNotFound, index)
	}
	return CreateTaskFromLink(d.store, result, result.FoundLinks[index])
}

// Monitoring 返回监控中心数据
func (d *Dashboard) Monitoring() models.MonitoringSnapshot {
	return d.monitor.Build(d.store.Stats().Running)
}

// AntiCrawler 返回当前反爬设置
func (d *Dashboard) AntiCrawler() (models.AntiCrawlerConfig, error) {
	if d.headers == nil {
		return models.DefaultAntiCrawlerConfig(), nil
	}
	return d.headers.Settings()
}

// SaveAntiCrawler 保存反爬设置
func (d *Dashboard) SaveAntiCrawler(cfg models.AntiCrawlerConfig) error {
	if d.headers == nil {
		return fmt.Errorf("未配置反爬设置存储")
	}
	return d.headers.SaveSettings(cfg)
}

// ResetAntiCrawler 恢复默认反爬设置
func (d *Dashboard) ResetAntiCrawler() (models.AntiCrawlerConfig, error) {
	if d.headers == nil {
		return models.DefaultAntiCrawlerConfig(), nil
	}
	return d.headers.ResetSettings()
}

// SafeHeaders 返回脱敏后的生效请求头
func (d *Dashboard) SafeHeaders() (map[string]string, error) {
	if d.headers == nil {
		return map[string]string{}, nil
	}
	if _, err := d.headers.GetHeaders(); err != nil {
		return nil, err
	}
	return d.headers.GetSafeHeaders(), nil
}
