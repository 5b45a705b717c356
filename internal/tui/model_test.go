package tui

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestDashboard(t *testing.T) *core.Dashboard {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Analysis.DelayMS = 20
	cfg.Monitor.Enabled = false
	cfg.AntiCrawler.ConfigFile = filepath.Join(t.TempDir(), "anticrawler.yaml")

	dash, _, err := core.NewDashboardFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("创建控制面板失败: %v", err)
	}
	return dash
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	return NewModel(context.Background(), newTestDashboard(t))
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	next, ok := model.(Model)
	if !ok {
		t.Fatalf("Update返回了意外的模型类型 %T", model)
	}
	return next, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runCmd 同步执行命令并把结果送回模型
func runCmd(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("期望返回命令")
	}
	return press(t, m, cmd())
}

func TestModel_SwitchTabs(t *testing.T) {
	m := newTestModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != tabTasks {
		t.Fatalf("tab后期望任务列表页, 实际 %d", m.tab)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.tab != tabOverview {
		t.Fatalf("shift+tab后期望概览页, 实际 %d", m.tab)
	}
	m, _ = press(t, m, runes("4"))
	if m.tab != tabMonitor {
		t.Fatalf("按4期望监控页, 实际 %d", m.tab)
	}
	if !strings.Contains(m.View(), "活跃任务") {
		t.Error("监控页应显示活跃任务")
	}
}

func TestModel_TaskActions(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("2"))

	// 初始顺序: 1 completed, 2 running, 3 failed, 4 pending
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if got := m.snap.Tasks[1].Status; got != models.TaskStatusPaused {
		t.Errorf("running任务切换后应为paused, 实际 %s", got)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, runes("r"))
	if got := m.snap.Tasks[2]; got.Status != models.TaskStatusPending || got.ErrorMessage != nil {
		t.Errorf("重试后任务应为pending且无错误信息: %+v", got)
	}

	m, _ = press(t, m, runes("d"))
	if len(m.snap.Tasks) != 3 {
		t.Fatalf("删除后应剩3个任务, 实际 %d", len(m.snap.Tasks))
	}
	for _, task := range m.snap.Tasks {
		if task.ID == 3 {
			t.Error("任务3应已删除")
		}
	}
}

func TestModel_ToggleCompletedIsNoop(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("2"))

	m, _ = press(t, m, runes("p"))
	if got := m.snap.Tasks[0].Status; got != models.TaskStatusCompleted {
		t.Errorf("completed任务不应被切换, 实际 %s", got)
	}
	if !strings.Contains(m.statusMessage, "无法切换") {
		t.Errorf("状态栏应提示无法切换, 实际 %q", m.statusMessage)
	}
}

func TestModel_CreateTask(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("2"))
	m, _ = press(t, m, runes("n"))
	if !m.creating {
		t.Fatal("按n后应进入新建模式")
	}

	// 新建模式下q是普通字符
	m, _ = press(t, m, runes("https://example.com/q"))
	if m.quitting {
		t.Fatal("输入中不应退出")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.creating {
		t.Fatalf("创建成功后应退出新建模式, 状态: %s", m.statusMessage)
	}
	if len(m.snap.Tasks) != 5 || m.snap.Tasks[0].URL != "https://example.com/q" {
		t.Errorf("新任务应在最前面: %+v", m.snap.Tasks[0])
	}
	if m.snap.Tasks[0].Title != "未命名任务 5" {
		t.Errorf("未填写标题时应使用占位标题, 实际 %q", m.snap.Tasks[0].Title)
	}
}

func TestModel_CreateTaskInvalidURL(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("2"))
	m, _ = press(t, m, runes("n"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if !m.creating {
		t.Error("URL为空时应停留在新建模式")
	}
	if !strings.HasPrefix(m.statusMessage, "错误") {
		t.Errorf("应显示错误, 实际 %q", m.statusMessage)
	}
	if len(m.snap.Tasks) != 4 {
		t.Errorf("失败的创建不应改变任务集合")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.creating {
		t.Error("esc后应退出新建模式")
	}
}

func TestModel_AnalyzeFlow(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("3"))
	m, _ = press(t, m, runes("https://www.example.com/watch"))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd = runCmd(t, m, cmd)
	if !m.snap.Analyzing || m.analysisID == "" {
		t.Fatalf("提交后应处于分析中: %s", m.statusMessage)
	}

	// 等待分析完成
	m, _ = runCmd(t, m, cmd)
	if m.snap.Analyzing || m.snap.Analysis == nil {
		t.Fatalf("分析应已完成: %s", m.statusMessage)
	}
	if m.snap.Analysis.Domain != "example.com" {
		t.Errorf("域名不正确: %s", m.snap.Analysis.Domain)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if len(m.snap.Tasks) != 5 {
		t.Fatalf("应创建新任务: %s", m.statusMessage)
	}
	link := m.snap.Analysis.FoundLinks[1]
	if m.snap.Tasks[0].Quality != link.Quality {
		t.Errorf("新任务清晰度应为 %s, 实际 %s", link.Quality, m.snap.Tasks[0].Quality)
	}
}

func TestModel_CancelAnalysis(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("3"))
	m, _ = press(t, m, runes("https://example.com/a"))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, wait := runCmd(t, m, cmd)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = runCmd(t, m, wait)

	if m.statusMessage != "分析已取消" {
		t.Errorf("期望取消提示, 实际 %q", m.statusMessage)
	}
	if m.snap.Analyzing || m.snap.Analysis != nil {
		t.Errorf("取消后不应有结果: %+v", m.snap)
	}
}

func TestModel_AnalyzeInvalidURL(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, runes("3"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = runCmd(t, m, cmd)

	if !strings.HasPrefix(m.statusMessage, "错误") {
		t.Errorf("空URL应显示错误, 实际 %q", m.statusMessage)
	}
}

func TestModel_AntiCrawlerToggle(t *testing.T) {
	m := newTestModel(t)
	m, _ = runCmd(t, m, loadAntiCrawlerCmd(m.dash))
	if m.anti != models.DefaultAntiCrawlerConfig() {
		t.Fatalf("初始设置应为默认值: %+v", m.anti)
	}

	m, _ = press(t, m, runes("5"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = runCmd(t, m, cmd)

	if !m.anti.ProxyEnabled {
		t.Errorf("代理开关应已打开: %+v", m.anti)
	}
	saved, err := m.dash.AntiCrawler()
	if err != nil || !saved.ProxyEnabled {
		t.Errorf("设置应已保存: %+v, %v", saved, err)
	}

	m, cmd = press(t, m, runes("R"))
	m, _ = runCmd(t, m, cmd)
	if m.anti != models.DefaultAntiCrawlerConfig() {
		t.Errorf("重置后应为默认值: %+v", m.anti)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)
	m, cmd := press(t, m, runes("q"))
	if !m.quitting || cmd == nil {
		t.Fatal("按q应退出")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("期望QuitMsg")
	}
}

func TestModel_ViewRendersEveryTab(t *testing.T) {
	m := newTestModel(t)
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = runCmd(t, m, loadAntiCrawlerCmd(m.dash))

	tests := []struct {
		tab  tab
		want string
	}{
		{tabOverview, "总任务"},
		{tabTasks, "复仇者联盟4"},
		{tabAnalyze, "输入网址"},
		{tabMonitor, "成功率"},
		{tabAntiCrawler, "Referer"},
	}
	for _, tt := range tests {
		m.tab = tt.tab
		if view := m.View(); !strings.Contains(view, tt.want) {
			t.Errorf("页面 %s 应包含 %q", tabTitles[tt.tab], tt.want)
		}
	}
}

func TestProgram_TaskChangeKeepsRunning(t *testing.T) {
	dash := newTestDashboard(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, inWriter := io.Pipe()
	defer inWriter.Close()
	p := newProgram(ctx, dash, tea.WithInput(in), tea.WithOutput(io.Discard), tea.WithoutSignalHandler())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	// 在事件循环里切换任务状态,再要求退出
	go func() {
		p.Send(runes("2"))
		p.Send(runes("j"))
		p.Send(tea.KeyMsg{Type: tea.KeySpace})
		p.Quit()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("程序异常退出: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("切换任务后程序没有在3秒内处理退出")
	}

	task, err := dash.Store().Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusPaused {
		t.Errorf("任务2应被暂停, 实际 %s", task.Status)
	}
}
