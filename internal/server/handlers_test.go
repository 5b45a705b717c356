package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/andybalholm/brotli"
)

func newTestServer(t *testing.T, compression bool) *Server {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Analysis.DelayMS = 20
	cfg.Monitor.Enabled = false
	cfg.AntiCrawler.ConfigFile = filepath.Join(t.TempDir(), "anticrawler.yaml")

	dash, _, err := core.NewDashboardFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("创建控制面板失败: %v", err)
	}
	cfg.Server.Compression = compression
	s := NewServer(dash, cfg.Server)
	t.Cleanup(s.cancelBase)
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, false)
	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("期望200, 实际 %d", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("响应缺少请求ID")
	}
}

func TestRequestID_KeepsClientValue(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("期望沿用客户端请求ID, 实际 %q", got)
	}
}

func TestListAndCreateTasks(t *testing.T) {
	s := newTestServer(t, false)

	var tasks []models.Task
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/tasks", nil), &tasks)
	if len(tasks) != 4 {
		t.Fatalf("期望4个初始任务, 实际 %d", len(tasks))
	}

	rec := doRequest(t, s, http.MethodPost, "/api/tasks", models.CreateTaskInput{
		URL:     "https://example.com/movie/99",
		Quality: "1080p",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("期望201, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Task
	decodeBody(t, rec, &created)
	if created.ID != 5 || created.Status != models.TaskStatusPending || created.Quality != models.Quality1080p {
		t.Errorf("创建的任务不正确: %+v", created)
	}

	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/tasks", nil), &tasks)
	if len(tasks) != 5 || tasks[0].ID != 5 {
		t.Errorf("新任务应排在最前面: %+v", tasks)
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{"空URL", models.CreateTaskInput{URL: "   "}},
		{"非HTTP地址", models.CreateTaskInput{URL: "ftp://example.com/a"}},
		{"未知清晰度", models.CreateTaskInput{URL: "https://example.com/a", Quality: "8k"}},
		{"无效JSON", "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("期望400, 实际 %d", rec.Code)
			}
			var resp errorResponse
			decodeBody(t, rec, &resp)
			if resp.Error == "" {
				t.Error("错误响应缺少error字段")
			}
		})
	}

	var tasks []models.Task
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/tasks", nil), &tasks)
	if len(tasks) != 4 {
		t.Errorf("失败的创建不应改变任务集合, 实际 %d", len(tasks))
	}
}

func TestToggleDeleteRetry(t *testing.T) {
	s := newTestServer(t, false)

	// 初始任务: 1 completed, 2 running, 3 failed, 4 pending
	var resp changedResponse
	decodeBody(t, doRequest(t, s, http.MethodPost, "/api/tasks/2/toggle", nil), &resp)
	if !resp.Changed || resp.Task == nil || resp.Task.Status != models.TaskStatusPaused {
		t.Errorf("running任务应切换为paused: %+v", resp)
	}

	// 任务1为completed,切换无效
	resp = changedResponse{}
	decodeBody(t, doRequest(t, s, http.MethodPost, "/api/tasks/1/toggle", nil), &resp)
	if resp.Changed {
		t.Error("completed任务不应被切换")
	}

	resp = changedResponse{}
	decodeBody(t, doRequest(t, s, http.MethodPost, "/api/tasks/3/retry", nil), &resp)
	if !resp.Changed || resp.Task == nil || resp.Task.Status != models.TaskStatusPending || resp.Task.ErrorMessage != nil {
		t.Errorf("重试后任务应为pending且无错误信息: %+v", resp)
	}

	resp = changedResponse{}
	decodeBody(t, doRequest(t, s, http.MethodDelete, "/api/tasks/4", nil), &resp)
	if !resp.Changed {
		t.Error("删除存在的任务应返回changed=true")
	}
	rec := doRequest(t, s, http.MethodGet, "/api/tasks/4", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("删除后查询期望404, 实际 %d", rec.Code)
	}
}

func TestUnknownAndBadIDs(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/api/tasks/999/toggle", "/api/tasks/999/retry"} {
		rec := doRequest(t, s, http.MethodPost, path, nil)
		var resp changedResponse
		decodeBody(t, rec, &resp)
		if rec.Code != http.StatusOK || resp.Changed {
			t.Errorf("%s: 未知ID应返回200和changed=false, 实际 %d %+v", path, rec.Code, resp)
		}
	}

	rec := doRequest(t, s, http.MethodDelete, "/api/tasks/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("非数字ID期望400, 实际 %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, false)
	rec := doRequest(t, s, http.MethodPut, "/api/tasks", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("期望405, 实际 %d", rec.Code)
	}
}

func waitForAnalysis(t *testing.T, s *Server) analysisResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var resp analysisResponse
		decodeBody(t, doRequest(t, s, http.MethodGet, "/api/analysis", nil), &resp)
		if !resp.Analyzing {
			return resp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("等待分析结果超时")
	return analysisResponse{}
}

func TestAnalyzeFlow(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(t, s, http.MethodPost, "/api/analyze", analyzeRequest{URL: "https://www.movies.example.co.uk/watch"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("期望202, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	var started analyzeResponse
	decodeBody(t, rec, &started)
	if started.ID == "" || !started.Busy {
		t.Errorf("响应不正确: %+v", started)
	}

	// 进行中时再次提交
	rec = doRequest(t, s, http.MethodPost, "/api/analyze", analyzeRequest{URL: "https://example.com"})
	if rec.Code != http.StatusConflict {
		t.Errorf("进行中再次分析期望409, 实际 %d", rec.Code)
	}

	resp := waitForAnalysis(t, s)
	if resp.Result == nil {
		t.Fatal("分析完成后应有结果")
	}
	if resp.Result.Domain != "example.co.uk" || len(resp.Result.FoundLinks) == 0 {
		t.Errorf("分析结果不正确: %+v", resp.Result)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/analysis/links/0/task", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("期望201, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	var task models.Task
	decodeBody(t, rec, &task)
	if task.URL != resp.Result.FoundLinks[0].URL || task.Quality != resp.Result.FoundLinks[0].Quality {
		t.Errorf("资源创建的任务不正确: %+v", task)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/analysis/links/99/task", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("越界资源期望404, 实际 %d", rec.Code)
	}
}

func TestAnalyze_InvalidURL(t *testing.T) {
	s := newTestServer(t, false)
	rec := doRequest(t, s, http.MethodPost, "/api/analyze", analyzeRequest{URL: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("空URL期望400, 实际 %d", rec.Code)
	}
}

func TestCancelAnalysis(t *testing.T) {
	s := newTestServer(t, false)

	var resp changedResponse
	decodeBody(t, doRequest(t, s, http.MethodDelete, "/api/analysis", nil), &resp)
	if resp.Changed {
		t.Error("没有分析时取消应返回changed=false")
	}

	doRequest(t, s, http.MethodPost, "/api/analyze", analyzeRequest{URL: "https://example.com/a"})
	decodeBody(t, doRequest(t, s, http.MethodDelete, "/api/analysis", nil), &resp)
	if !resp.Changed {
		t.Error("进行中的分析应被取消")
	}

	time.Sleep(50 * time.Millisecond)
	var analysis analysisResponse
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/analysis", nil), &analysis)
	if analysis.Analyzing || analysis.Result != nil {
		t.Errorf("取消后不应有结果: %+v", analysis)
	}
}

func TestStatsAndMonitoring(t *testing.T) {
	s := newTestServer(t, false)

	var stats models.DashboardStats
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/stats", nil), &stats)
	if stats.Total != 4 || stats.Completed != 1 || stats.Running != 1 {
		t.Errorf("统计不正确: %+v", stats)
	}

	var snap models.MonitoringSnapshot
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/monitoring", nil), &snap)
	if len(snap.SystemStats) == 0 || len(snap.Alerts) == 0 {
		t.Errorf("监控数据不完整: %+v", snap)
	}
	if snap.ActiveTasks != 1 {
		t.Errorf("活跃任务应为1, 实际 %d", snap.ActiveTasks)
	}
}

func TestAntiCrawlerSettings(t *testing.T) {
	s := newTestServer(t, false)

	var cfg models.AntiCrawlerConfig
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/anticrawler", nil), &cfg)
	if cfg != models.DefaultAntiCrawlerConfig() {
		t.Errorf("初始设置应为默认值: %+v", cfg)
	}

	rec := doRequest(t, s, http.MethodPut, "/api/anticrawler", map[string]interface{}{
		"proxyEnabled":  true,
		"crawlDelay":    3000,
		"customHeaders": "Cookie: session=secret\nX-Test: 1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望200, 实际 %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &cfg)
	if !cfg.ProxyEnabled || cfg.CrawlDelay != 3000 || cfg.MaxRetries != 3 {
		t.Errorf("保存后的设置不正确: %+v", cfg)
	}

	var headers map[string]string
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/anticrawler/headers", nil), &headers)
	if headers["X-Test"] != "1" {
		t.Errorf("自定义请求头未生效: %v", headers)
	}
	if strings.Contains(headers["Cookie"], "secret") {
		t.Errorf("敏感头部未脱敏: %v", headers)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/anticrawler", map[string]interface{}{"crawlDelay": 10})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("越界的爬取间隔期望400, 实际 %d", rec.Code)
	}

	decodeBody(t, doRequest(t, s, http.MethodPost, "/api/anticrawler/reset", nil), &cfg)
	if cfg != models.DefaultAntiCrawlerConfig() {
		t.Errorf("重置后应为默认值: %+v", cfg)
	}
}

func TestCompression(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		accept   string
		encoding string
		reader   func(io.Reader) (io.Reader, error)
	}{
		{"gzip, br", "br", func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil }},
		{"gzip", "gzip", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{"", "", func(r io.Reader) (io.Reader, error) { return r, nil }},
	}

	for _, tt := range tests {
		t.Run("accept="+tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if got := rec.Header().Get("Content-Encoding"); got != tt.encoding {
				t.Fatalf("Content-Encoding 期望 %q, 实际 %q", tt.encoding, got)
			}
			r, err := tt.reader(rec.Body)
			if err != nil {
				t.Fatal(err)
			}
			var tasks []models.Task
			if err := json.NewDecoder(r).Decode(&tasks); err != nil {
				t.Fatalf("解码响应失败: %v", err)
			}
			if len(tasks) != 4 {
				t.Errorf("期望4个任务, 实际 %d", len(tasks))
			}
		})
	}
}

func TestNegotiateEncoding(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"identity":          "",
		"gzip":              "gzip",
		"gzip, deflate, br": "br",
		"br;q=0, gzip":      "gzip",
		"BR":                "br",
	}
	for accept, want := range tests {
		if got := negotiateEncoding(accept); got != want {
			t.Errorf("negotiateEncoding(%q) = %q, 期望 %q", accept, got, want)
		}
	}
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("panic后期望500, 实际 %d", rec.Code)
	}
}

func TestRecoverer_InsideCompression(t *testing.T) {
	t.Run("写入前panic返回压缩的错误体", func(t *testing.T) {
		h := compress(recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("期望500, 实际 %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("Content-Encoding 期望 gzip, 实际 %q", got)
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("错误体不是有效的gzip: %v", err)
		}
		var body errorResponse
		if err := json.NewDecoder(zr).Decode(&body); err != nil {
			t.Fatalf("解码错误体失败: %v", err)
		}
		if body.Error == "" {
			t.Error("错误体缺少error字段")
		}
	})

	t.Run("响应头已发出后panic不追加错误体", func(t *testing.T) {
		h := compress(recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"partial":true}`))
			panic("boom")
		})))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("状态码不应被改写, 实际 %d", rec.Code)
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("响应不是有效的gzip: %v", err)
		}
		data, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("读取响应失败: %v", err)
		}
		if string(data) != `{"partial":true}` {
			t.Errorf("响应体不应包含错误信息: %s", data)
		}
	})
}
