package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/MovieCrawler/internal/config"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
)

func newTestHeaderManager(t *testing.T, cliHeaders []string) *HeaderManager {
	t.Helper()
	loader := config.NewAntiCrawlerLoader(filepath.Join(t.TempDir(), "anticrawler.yaml"))
	hm, err := NewHeaderManager(loader, cliHeaders)
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}
	return hm
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	t.Run("反爬设置覆盖默认头部", func(t *testing.T) {
		hm := newTestHeaderManager(t, nil)

		headers, err := hm.GetHeaders()
		if err != nil {
			t.Fatalf("GetHeaders失败: %v", err)
		}
		if headers.Get("Referer") != "https://www.google.com/" {
			t.Error("应包含反爬设置中的Referer")
		}
		if headers.Get("Accept-Encoding") != "gzip, deflate, br" {
			t.Error("应保留默认的Accept-Encoding")
		}
		if headers.Get("Accept") == "*/*" {
			t.Error("反爬设置中的Accept应覆盖默认值")
		}
	})

	t.Run("命令行头部优先级最高", func(t *testing.T) {
		hm := newTestHeaderManager(t, []string{"User-Agent: CustomBot/1.0", "X-Custom: value1"})

		headers, err := hm.GetHeaders()
		if err != nil {
			t.Fatalf("GetHeaders失败: %v", err)
		}
		if headers.Get("User-Agent") != "CustomBot/1.0" || headers.Get("X-Custom") != "value1" {
			t.Errorf("命令行头部未生效: %v", headers)
		}
	})

	t.Run("非法命令行参数返回错误", func(t *testing.T) {
		loader := config.NewAntiCrawlerLoader(filepath.Join(t.TempDir(), "a.yaml"))
		if _, err := NewHeaderManager(loader, []string{"InvalidFormat"}); err == nil {
			t.Error("期望返回错误, 但成功了")
		}
	})

	t.Run("禁止头部返回验证错误", func(t *testing.T) {
		hm := newTestHeaderManager(t, []string{"Host: example.com"})
		if _, err := hm.GetHeaders(); !models.IsValidationError(err) {
			t.Errorf("期望ValidationError, 实际 %v", err)
		}
	})
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm := newTestHeaderManager(t, []string{
		"Authorization: Bearer secret-token-12345",
		"X-API-Key: api-key-67890",
	})
	if err := hm.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization = %q", safe["Authorization"])
	}
	if safe["X-Api-Key"] == "api-key-67890" {
		t.Error("X-API-Key应该被脱敏")
	}
	if safe["Referer"] != "https://www.google.com/" {
		t.Error("普通头部不应该被脱敏")
	}
}

func TestHeaderManager_SaveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anticrawler.yaml")
	hm, err := NewHeaderManager(config.NewAntiCrawlerLoader(path), nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := models.DefaultAntiCrawlerConfig()
	cfg.CustomHeaders = "User-Agent: SavedBot/2.0"
	cfg.MaxRetries = 5

	if err := hm.SaveSettings(cfg); err != nil {
		t.Fatalf("保存设置失败: %v", err)
	}

	got, err := hm.Settings()
	if err != nil || got.MaxRetries != 5 {
		t.Errorf("Settings() = %+v, %v", got, err)
	}
	headers, err := hm.GetHeaders()
	if err != nil {
		t.Fatal(err)
	}
	if headers.Get("User-Agent") != "SavedBot/2.0" {
		t.Errorf("保存后User-Agent = %q", headers.Get("User-Agent"))
	}

	t.Run("禁止头部不写入", func(t *testing.T) {
		before, _ := os.ReadFile(path)

		bad := cfg
		bad.CustomHeaders = "Host: evil.com"
		if err := hm.SaveSettings(bad); !models.IsValidationError(err) {
			t.Errorf("期望ValidationError, 实际 %v", err)
		}

		after, _ := os.ReadFile(path)
		if string(before) != string(after) {
			t.Error("校验失败时文件不应被修改")
		}
	})

	t.Run("恢复默认", func(t *testing.T) {
		reset, err := hm.ResetSettings()
		if err != nil {
			t.Fatal(err)
		}
		if reset != models.DefaultAntiCrawlerConfig() {
			t.Errorf("ResetSettings() = %+v", reset)
		}
		headers := hm.GetMergedHeaders()
		if headers.Get("User-Agent") == "SavedBot/2.0" {
			t.Error("恢复默认后自定义User-Agent应被移除")
		}
	})
}
