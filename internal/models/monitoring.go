package models

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelSuccess AlertLevel = "success"
	AlertLevelInfo    AlertLevel = "info"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// SuccessRateSlice 成功率饼图的一个扇区
type SuccessRateSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// SpeedPoint 下载速度柱状图的一个采样点
type SpeedPoint struct {
	Name  string  `json:"name"`  // 时间标签 (如 "10:30")
	Speed float64 `json:"speed"` // MB/s
}

// Alert 告警信息
type Alert struct {
	ID      int        `json:"id"`
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
	Time    string     `json:"time"`
}

// SystemStat 系统状态卡片
type SystemStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MonitoringSnapshot 监控中心的完整数据
type MonitoringSnapshot struct {
	SystemStats []SystemStat       `json:"systemStats"`
	SuccessRate []SuccessRateSlice `json:"successRate"`
	Speed       []SpeedPoint       `json:"speed"`
	Alerts      []Alert            `json:"alerts"`
	ActiveTasks int                `json:"activeTasks"`
}
