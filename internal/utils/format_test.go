package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes float64
		want  string
	}{
		{"零", 0, "0 B"},
		{"负数", -5, "0 B"},
		{"字节", 512, "512 B"},
		{"整KB", 1024, "1 KB"},
		{"小数KB", 1536, "1.5 KB"},
		{"MB", 1980 * 1024, "1.93 MB"},
		{"GB", 2856 * 1024 * 1024, "2.79 GB"},
		{"超过GB仍用GB", 3 * 1024 * 1024 * 1024 * 1024, "3072 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFileSize(tt.bytes); got != tt.want {
				t.Errorf("FormatFileSize(%v) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatTaskSize(t *testing.T) {
	if got := FormatTaskSize(4560); got != "4.45 GB" {
		t.Errorf("FormatTaskSize(4560) = %q", got)
	}
	if got := FormatTaskSize(0); got != "0 B" {
		t.Errorf("FormatTaskSize(0) = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, 10, 29, 9, 15, 0, 0, time.Local)
	if got := FormatDate(ts); got != "2025/10/29 09:15" {
		t.Errorf("FormatDate() = %q", got)
	}
}

func TestReporter_WriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewReporter(dir)

	path, err := r.WriteReport("tasks", map[string]int{"total": 4})
	if err != nil {
		t.Fatalf("WriteReport失败: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "tasks_") {
		t.Errorf("报告文件名 = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	if !strings.Contains(string(data), `"total": 4`) {
		t.Errorf("报告内容 = %s", data)
	}
}
