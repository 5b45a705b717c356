package monitor

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// 内存压力等级
const (
	PressureNormal    = "normal"
	PressureWarning   = "warning"
	PressureCritical  = "critical"
	PressureEmergency = "emergency"
)

var errEmptyCPUStats = errors.New("CPU使用率数据为空")

// Config 资源监控器配置
type Config struct {
	Interval          time.Duration // 采样间隔
	WarningThreshold  float64       // CPU告警阈值(%)
	CriticalThreshold float64       // CPU严重阈值(%)
	SafetyReserve     int64         // 安全保留内存(字节),计算可用内存时扣除
}

// DefaultConfig 默认监控配置
func DefaultConfig() Config {
	return Config{
		Interval:          5 * time.Second,
		WarningThreshold:  80,
		CriticalThreshold: 90,
	}
}

// SystemLoad 一次采样的系统负载
type SystemLoad struct {
	Sampled         bool      `json:"sampled"`
	SampledAt       time.Time `json:"sampledAt"`
	CPUPercent      float64   `json:"cpuPercent"`
	TotalMemory     uint64    `json:"totalMemory"`
	AvailableMemory int64     `json:"availableMemory"`
	MemoryPercent   float64   `json:"memoryPercent"`
	ProcessAlloc    uint64    `json:"processAlloc"`
	MemoryPressure  string    `json:"memoryPressure"`
}

// ResourceMonitor 系统资源监控器
// 周期性采样主机CPU和内存,供监控中心展示服务器负载
type ResourceMonitor struct {
	config Config

	// 采样函数,测试时可替换
	cpuPercent    func() (float64, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)

	mu   sync.RWMutex
	last SystemLoad

	// 监控控制
	runMu      sync.Mutex
	cancelFunc context.CancelFunc
	stopped    chan struct{}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config Config) *ResourceMonitor {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.WarningThreshold <= 0 {
		config.WarningThreshold = def.WarningThreshold
	}
	if config.CriticalThreshold <= 0 {
		config.CriticalThreshold = def.CriticalThreshold
	}

	return &ResourceMonitor{
		config:        config,
		cpuPercent:    sampleCPU,
		virtualMemory: mem.VirtualMemory,
		last:          SystemLoad{MemoryPressure: PressureNormal},
	}
}

// Config 返回监控配置
func (rm *ResourceMonitor) Config() Config {
	return rm.config
}

// Start 启动后台采样,重复调用无效
// ctx取消或调用Stop后停止
func (rm *ResourceMonitor) Start(ctx context.Context) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.cancelFunc != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	rm.cancelFunc = cancel
	rm.stopped = make(chan struct{})

	go rm.monitoringLoop(ctx, rm.stopped)
	utils.Debugf("资源监控已启动 (间隔 %s)", rm.config.Interval)
}

// Stop 停止后台采样并等待采样循环退出
func (rm *ResourceMonitor) Stop() {
	rm.runMu.Lock()
	cancel, stopped := rm.cancelFunc, rm.stopped
	rm.cancelFunc, rm.stopped = nil, nil
	rm.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// monitoringLoop 后台监控循环
func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	rm.Sample()

	ticker := time.NewTicker(rm.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.Sample()
		}
	}
}

// Sample 立即采样一次并返回结果
func (rm *ResourceMonitor) Sample() SystemLoad {
	load := SystemLoad{
		Sampled:   true,
		SampledAt: time.Now(),
	}

	cpuUsage, err := rm.cpuPercent()
	if err != nil {
		utils.Logger.Warn().Err(err).Msg("获取CPU使用率失败")
		load.Sampled = false
	}
	load.CPUPercent = cpuUsage

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	load.ProcessAlloc = memStats.Alloc

	vm, err := rm.virtualMemory()
	if err != nil {
		utils.Logger.Warn().Err(err).Msg("获取系统内存失败")
		load.MemoryPressure = PressureNormal
	} else {
		load.TotalMemory = vm.Total
		load.MemoryPercent = vm.UsedPercent
		load.AvailableMemory = int64(vm.Available) - rm.config.SafetyReserve
		load.MemoryPressure = MemoryPressure(load.AvailableMemory)
	}

	rm.mu.Lock()
	rm.last = load
	rm.mu.Unlock()

	if load.MemoryPressure != PressureNormal {
		utils.Logger.Warn().
			Str("pressure", load.MemoryPressure).
			Int64("available_mb", load.AvailableMemory/(1024*1024)).
			Msg("可用内存不足")
	}
	return load
}

// Snapshot 返回最近一次采样结果
func (rm *ResourceMonitor) Snapshot() SystemLoad {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.last
}

// CPULevel 根据阈值判断CPU负载等级
func (rm *ResourceMonitor) CPULevel(percent float64) string {
	switch {
	case percent >= rm.config.CriticalThreshold:
		return PressureCritical
	case percent >= rm.config.WarningThreshold:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// MemoryPressure 根据可用内存(字节)判断内存压力等级
func MemoryPressure(available int64) string {
	availableMB := available / (1024 * 1024)
	switch {
	case availableMB < 200:
		return PressureEmergency
	case availableMB < 300:
		return PressureCritical
	case availableMB < 500:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// sampleCPU 获取所有CPU核心的平均使用率
// 100毫秒采样间隔,避免阻塞过久
func sampleCPU() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, errEmptyCPUStats
	}
	return percentages[0], nil
}
