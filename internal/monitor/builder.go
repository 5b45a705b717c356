package monitor

import (
	"fmt"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
)

// 监控中心固定展示的数据
const (
	fallbackServerLoad  = "42%"
	cannedSuccessRate   = "85%"
	cannedResponseTime  = "320ms"
	cannedAntiCrawlRate = "92%"
)

// LoadSource 提供系统负载采样结果
type LoadSource interface {
	Snapshot() SystemLoad
}

// Builder 生成监控中心快照
// 活跃任务和服务器负载为实时数据,其余为固定演示数据
type Builder struct {
	load     LoadSource
	levelFor func(float64) string
}

// NewBuilder 创建监控快照生成器,load为nil时服务器负载使用固定值
func NewBuilder(load LoadSource) *Builder {
	b := &Builder{load: load}
	if rm, ok := load.(*ResourceMonitor); ok && rm != nil {
		b.levelFor = rm.CPULevel
	}
	return b
}

// Build 生成监控快照
// activeTasks 为当前下载中的任务数
func (b *Builder) Build(activeTasks int) models.MonitoringSnapshot {
	serverLoad := fallbackServerLoad
	status := "正常"
	alerts := cannedAlerts()

	if b.load != nil {
		if load := b.load.Snapshot(); load.Sampled {
			serverLoad = fmt.Sprintf("%.0f%%", load.CPUPercent)

			level := PressureNormal
			if b.levelFor != nil {
				level = b.levelFor(load.CPUPercent)
			}
			if load.MemoryPressure == PressureCritical || load.MemoryPressure == PressureEmergency {
				level = PressureCritical
			}

			switch level {
			case PressureCritical:
				status = "繁忙"
				alerts = append([]models.Alert{{
					ID:      len(alerts) + 1,
					Level:   models.AlertLevelError,
					Message: fmt.Sprintf("服务器负载过高 (CPU %.0f%%, 内存 %s)", load.CPUPercent, load.MemoryPressure),
					Time:    load.SampledAt.Format("15:04"),
				}}, alerts...)
			case PressureWarning:
				alerts = append([]models.Alert{{
					ID:      len(alerts) + 1,
					Level:   models.AlertLevelWarning,
					Message: fmt.Sprintf("服务器CPU负载偏高 (%.0f%%)", load.CPUPercent),
					Time:    load.SampledAt.Format("15:04"),
				}}, alerts...)
			}
		}
	}

	return models.MonitoringSnapshot{
		SystemStats: []models.SystemStat{
			{Label: "系统状态", Value: status},
			{Label: "活跃任务", Value: fmt.Sprint(activeTasks)},
			{Label: "平均成功率", Value: cannedSuccessRate},
			{Label: "响应时间", Value: cannedResponseTime},
			{Label: "服务器负载", Value: serverLoad},
			{Label: "反爬成功率", Value: cannedAntiCrawlRate},
		},
		SuccessRate: []models.SuccessRateSlice{
			{Name: "成功", Value: 85, Color: "#10b981"},
			{Name: "失败", Value: 15, Color: "#ef4444"},
		},
		Speed: []models.SpeedPoint{
			{Name: "10:00", Speed: 12},
			{Name: "10:30", Speed: 18},
			{Name: "11:00", Speed: 15},
			{Name: "11:30", Speed: 22},
			{Name: "12:00", Speed: 19},
			{Name: "12:30", Speed: 25},
		},
		Alerts:      alerts,
		ActiveTasks: activeTasks,
	}
}

func cannedAlerts() []models.Alert {
	return []models.Alert{
		{ID: 1, Level: models.AlertLevelWarning, Message: "爬虫成功率低于阈值 (78%)", Time: "12:15"},
		{ID: 2, Level: models.AlertLevelInfo, Message: "系统完成例行维护", Time: "10:30"},
		{ID: 3, Level: models.AlertLevelSuccess, Message: "反爬策略更新成功", Time: "09:45"},
	}
}
