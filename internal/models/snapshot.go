package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StoreSnapshot 任务集合快照
// 用于在进程重启之间保留任务列表 (可选功能)
type StoreSnapshot struct {
	// 任务列表 (最新在前)
	Tasks []Task `json:"tasks"`

	// 已分配过的最大ID,保证删除后ID也不会复用
	LastID int `json:"last_id"`

	// 保存时间
	SavedAt time.Time `json:"saved_at"`
}

// ToJSON 序列化为JSON
func (s *StoreSnapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化
func (s *StoreSnapshot) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}

// Validate 检查快照内的任务是否满足记录不变量且ID唯一
func (s *StoreSnapshot) Validate() error {
	seen := make(map[int]bool, len(s.Tasks))
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if seen[t.ID] {
			return fmt.Errorf("快照中存在重复的任务ID: %d", t.ID)
		}
		seen[t.ID] = true
		if err := t.CheckInvariants(); err != nil {
			return err
		}
	}
	return nil
}

// SaveToFile 保存到文件
// 先写同目录下的临时文件再重命名,读取方不会看到写了一半的快照
func (s *StoreSnapshot) SaveToFile(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建快照目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时快照文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入快照失败: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("设置快照权限失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}
	return os.Rename(tmpName, path)
}

// LoadStoreSnapshot 从文件加载快照
func LoadStoreSnapshot(path string) (*StoreSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap StoreSnapshot
	if err := snap.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	return &snap, nil
}
