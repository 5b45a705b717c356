package models

import "time"

// SeedTasks 返回演示用的初始任务 (ID 1-4,按ID顺序)
// completed/failed 状态只会出现在这里,状态机本身无法到达
func SeedTasks() []Task {
	at := func(s string) time.Time {
		t, _ := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
		return t
	}
	return []Task{
		{
			ID:           1,
			URL:          "https://example-movie.com/film123",
			Title:        "复仇者联盟4：终局之战",
			Status:       TaskStatusCompleted,
			Quality:      Quality1080p,
			FileSize:     2856,
			Progress:     100,
			CreatedAt:    at("2025-10-28T14:30:00"),
			DownloadPath: stringPtr("/downloads/avengers4.mp4"),
		},
		{
			ID:        2,
			URL:       "https://example-movie.com/film456",
			Title:     "盗梦空间",
			Status:    TaskStatusRunning,
			Quality:   Quality720p,
			FileSize:  1980,
			Progress:  65,
			CreatedAt: at("2025-10-29T09:15:00"),
		},
		{
			ID:           3,
			URL:          "https://example-movie.com/film789",
			Title:        "星际穿越",
			Status:       TaskStatusFailed,
			Quality:      Quality1080p,
			FileSize:     0,
			Progress:     0,
			CreatedAt:    at("2025-10-29T11:45:00"),
			ErrorMessage: stringPtr("连接超时，请检查网络或尝试其他反爬策略"),
		},
		{
			ID:        4,
			URL:       "https://example-movie.com/film101",
			Title:     "黑客帝国",
			Status:    TaskStatusPending,
			Quality:   Quality4K,
			FileSize:  4560,
			Progress:  0,
			CreatedAt: at("2025-10-29T12:30:00"),
		},
	}
}
