package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/MovieCrawler/internal/config"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

// TestEdgeCases_CliHeaders 测试命令行头部的边缘情况
func TestEdgeCases_CliHeaders(t *testing.T) {
	t.Run("nil的CLI头部数组", func(t *testing.T) {
		var cliHeaders models.CliHeaders
		if _, err := cliHeaders.Parse(); err != nil {
			t.Errorf("nil数组应该无错误, 得到: %v", err)
		}
	})

	t.Run("头部名称和值前后空格", func(t *testing.T) {
		headers, err := models.CliHeaders([]string{"  User-Agent  :  Mozilla/5.0  "}).Parse()
		if err != nil {
			t.Fatalf("应该自动trim空格, 得到错误: %v", err)
		}
		if val := headers.Get("User-Agent"); val != "Mozilla/5.0" {
			t.Errorf("应该trim头部名称和值, 得到: '%s'", val)
		}
	})

	t.Run("值中间的空格应该保留", func(t *testing.T) {
		headers, err := models.CliHeaders([]string{"X-Custom: value with spaces"}).Parse()
		if err != nil {
			t.Fatalf("应该允许值中间有空格, 得到错误: %v", err)
		}
		if val := headers.Get("X-Custom"); val != "value with spaces" {
			t.Errorf("应该保留值中间的空格, 得到: '%s'", val)
		}
	})

	t.Run("值中包含冒号", func(t *testing.T) {
		headers, err := models.CliHeaders([]string{"Referer: https://example.com:8080/path"}).Parse()
		if err != nil {
			t.Fatalf("应该允许值中包含冒号, 得到错误: %v", err)
		}
		if val := headers.Get("Referer"); val != "https://example.com:8080/path" {
			t.Errorf("值中的冒号应该保留, 得到: '%s'", val)
		}
	})

	t.Run("缺少冒号分隔符", func(t *testing.T) {
		if _, err := models.CliHeaders([]string{"User-Agent Mozilla/5.0"}).Parse(); err == nil {
			t.Error("缺少冒号应该报错")
		}
	})

	t.Run("只有冒号没有名称", func(t *testing.T) {
		if _, err := models.CliHeaders([]string{":value"}).Parse(); err == nil {
			t.Error("缺少头部名称应该报错")
		}
	})

	t.Run("非法CLI头部导致创建失败", func(t *testing.T) {
		loader := config.NewAntiCrawlerLoader(filepath.Join(t.TempDir(), "anticrawler.yaml"))
		if _, err := NewHeaderManager(loader, []string{"broken"}); err == nil {
			t.Error("非法CLI头部应该报错")
		}
	})
}

// TestEdgeCases_HeaderValues 测试头部值的字符和长度边界
func TestEdgeCases_HeaderValues(t *testing.T) {
	validator := utils.NewHeaderValidator()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"值包含引号", `value "with" quotes`, false},
		{"零长度头部值", "", false},
		{"最大长度头部值", strings.Repeat("a", utils.MaxHeaderValueLength), false},
		{"超过最大长度", strings.Repeat("a", utils.MaxHeaderValueLength+1), true},
		{"值包含中文字符", "测试中文", true},
		{"值包含Unicode表情", "test 😀 emoji", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateValue("X-Test", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateValue() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("禁止头部不区分大小写", func(t *testing.T) {
		for _, name := range []string{"Host", "host", "HOST", "HoSt"} {
			if !validator.IsForbidden(name) {
				t.Errorf("禁止头部应该不区分大小写: %s", name)
			}
		}
	})
}

// TestEdgeCases_AntiCrawlerFile 测试反爬设置文件的边缘情况
func TestEdgeCases_AntiCrawlerFile(t *testing.T) {
	t.Run("配置文件不存在时自动生成", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nonexist", "anticrawler.yaml")
		loader := config.NewAntiCrawlerLoader(path)

		if err := loader.EnsureConfigExists(); err != nil {
			t.Fatalf("应该自动创建配置文件, 得到错误: %v", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Error("配置文件未创建")
		}
	})

	t.Run("空配置文件使用默认值", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := config.NewAntiCrawlerLoader(path).Load()
		if err != nil {
			t.Fatalf("空配置文件应该可以加载, 得到错误: %v", err)
		}
		if cfg != models.DefaultAntiCrawlerConfig() {
			t.Errorf("空配置应该使用默认值: %+v", cfg)
		}
	})

	t.Run("配置文件过大", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "huge.yaml")
		huge := strings.Repeat("custom_headers: X-Test\n", 50000)
		if err := os.WriteFile(path, []byte(huge), 0644); err != nil {
			t.Fatal(err)
		}
		if err := config.NewAntiCrawlerLoader(path).ValidateFileSize(); err == nil {
			t.Error("超大配置文件应该被拒绝")
		}
	})

	t.Run("同时提供CLI和配置文件头部", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anticrawler.yaml")
		content := "custom_headers: |-\n  X-Config: from-config\n  User-Agent: config-agent\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		hm, err := NewHeaderManager(config.NewAntiCrawlerLoader(path), []string{
			"X-CLI: from-cli",
			"User-Agent: cli-agent",
		})
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}
		if err := hm.LoadConfig(); err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		merged := hm.GetMergedHeaders()
		if val := merged.Get("User-Agent"); val != "cli-agent" {
			t.Errorf("CLI头部应该覆盖配置文件, 得到: %s", val)
		}
		if merged.Get("X-Config") == "" {
			t.Error("应该包含配置文件中的头部")
		}
		if merged.Get("X-CLI") == "" {
			t.Error("应该包含CLI中的头部")
		}
	})
}
