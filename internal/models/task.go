package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 等待中
	TaskStatusRunning   TaskStatus = "running"   // 下载中
	TaskStatusPaused    TaskStatus = "paused"    // 已暂停
	TaskStatusFailed    TaskStatus = "failed"    // 已失败
	TaskStatusCompleted TaskStatus = "completed" // 已完成
)

// AllTaskStatuses 全部合法状态(按生命周期顺序)
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusPaused,
	TaskStatusFailed,
	TaskStatusCompleted,
}

// String 返回状态字符串
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid 检查状态是否为已知值
func (s TaskStatus) IsValid() bool {
	for _, status := range AllTaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanToggle 是否可以在运行/暂停之间切换
func (s TaskStatus) CanToggle() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s == TaskStatusPaused
}

// IsFinished 是否为终止状态(完成或失败)
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Label 返回界面显示用的中文标签
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusPending:
		return "等待中"
	case TaskStatusRunning:
		return "下载中"
	case TaskStatusPaused:
		return "已暂停"
	case TaskStatusCompleted:
		return "已完成"
	default:
		return "已失败"
	}
}

// Quality 视频质量
type Quality string

const (
	Quality4K    Quality = "4K"    // 超高清
	Quality1080p Quality = "1080p" // 全高清
	Quality720p  Quality = "720p"  // 高清
	Quality480p  Quality = "480p"  // 标清
	Quality360p  Quality = "360p"  // 流畅
)

// DefaultQuality 创建任务时未指定质量的默认值
const DefaultQuality = Quality720p

// Qualities 可选质量列表(表单下拉顺序)
var Qualities = []Quality{Quality4K, Quality1080p, Quality720p, Quality480p, Quality360p}

// ParseQuality 解析质量标签,空字符串返回默认值
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultQuality, nil
	}
	for _, q := range Qualities {
		if strings.EqualFold(s, string(q)) {
			return q, nil
		}
	}
	return "", &ValidationError{
		Field:      "quality",
		Value:      s,
		Reason:     "不支持的视频质量",
		Suggestion: "可选值: 4K, 1080p, 720p, 480p, 360p",
	}
}

// Task 下载任务记录
type Task struct {
	ID           int        `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	Quality      Quality    `json:"quality"`
	FileSize     float64    `json:"fileSize"` // 文件大小(MB)
	Progress     int        `json:"progress"` // 0-100
	CreatedAt    time.Time  `json:"createdAt"`
	DownloadPath *string    `json:"downloadPath"` // 仅completed任务有值
	ErrorMessage *string    `json:"errorMessage"` // 仅failed任务有值
}

// Clone 深拷贝任务(指针字段独立)
func (t Task) Clone() Task {
	c := t
	if t.DownloadPath != nil {
		p := *t.DownloadPath
		c.DownloadPath = &p
	}
	if t.ErrorMessage != nil {
		m := *t.ErrorMessage
		c.ErrorMessage = &m
	}
	return c
}

// DisplayTitle 返回标题,标题为空时回退到URL
func (t *Task) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	return t.URL
}

// CheckInvariants 校验记录的不变量
func (t *Task) CheckInvariants() error {
	if !t.Status.IsValid() {
		return fmt.Errorf("任务 %d 状态无效: %q", t.ID, t.Status)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return fmt.Errorf("任务 %d 进度越界: %d", t.ID, t.Progress)
	}
	if (t.ErrorMessage != nil) != (t.Status == TaskStatusFailed) {
		return fmt.Errorf("任务 %d 错误信息与状态不一致 (status=%s)", t.ID, t.Status)
	}
	if t.DownloadPath != nil && t.Status != TaskStatusCompleted {
		return fmt.Errorf("任务 %d 仅完成状态可以有下载路径 (status=%s)", t.ID, t.Status)
	}
	return nil
}

// ToJSON 序列化为JSON
func (t *Task) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// CreateTaskInput 创建任务的表单输入
type CreateTaskInput struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// Normalize 去除首尾空白
func (in CreateTaskInput) Normalize() CreateTaskInput {
	return CreateTaskInput{
		URL:     strings.TrimSpace(in.URL),
		Title:   strings.TrimSpace(in.Title),
		Quality: strings.TrimSpace(in.Quality),
	}
}

// Validate 验证表单输入
// 返回: URL为空/无效或质量非法时返回*ValidationError
func (in CreateTaskInput) Validate() error {
	if err := ValidateURL(in.URL); err != nil {
		return err
	}
	if _, err := ParseQuality(in.Quality); err != nil {
		return err
	}
	return nil
}

// PlaceholderTitle 未填写标题时的自动占位标题
func PlaceholderTitle(id int) string {
	return fmt.Sprintf("未命名任务 %d", id)
}

// DashboardStats 控制面板统计卡片
type DashboardStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// CountTasks 统计各状态任务数量
func CountTasks(tasks []Task) DashboardStats {
	stats := DashboardStats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusCompleted:
			stats.Completed++
		case TaskStatusRunning:
			stats.Running++
		case TaskStatusPaused:
			stats.Paused++
		case TaskStatusPending:
			stats.Pending++
		case TaskStatusFailed:
			stats.Failed++
		}
	}
	return stats
}
