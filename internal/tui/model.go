package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type tab int

const (
	tabOverview tab = iota
	tabTasks
	tabAnalyze
	tabMonitor
	tabAntiCrawler
)

var tabTitles = []string{"概览", "任务列表", "网站分析", "监控中心", "反爬设置"}

// monitorRefreshInterval 监控页自动刷新间隔
const monitorRefreshInterval = 5 * time.Second

// 反爬设置页可切换的开关
var antiCrawlerToggles = []string{"随机User-Agent", "随机访问延迟", "启用代理IP", "绕过Cloudflare"}

type refreshMsg struct{}

type tickMsg time.Time

type analysisStartedMsg struct {
	handle *core.AnalysisHandle
	err    error
}

type analysisDoneMsg struct {
	id     string
	result *models.AnalysisResult
	err    error
}

type antiCrawlerMsg struct {
	config  models.AntiCrawlerConfig
	headers map[string]string
	message string
	err     error
}

// Model 终端控制面板
type Model struct {
	ctx  context.Context
	dash *core.Dashboard

	tab    tab
	width  int
	height int

	snap       core.DashboardSnapshot
	monitoring models.MonitoringSnapshot
	anti       models.AntiCrawlerConfig
	headers    map[string]string

	taskCursor int
	linkCursor int
	antiCursor int

	// creating 任务列表页正在输入新任务URL
	creating    bool
	createInput textinput.Model
	urlInput    textinput.Model

	analysisID    string
	statusMessage string
	quitting      bool
}

// NewModel 创建控制面板模型
func NewModel(ctx context.Context, dash *core.Dashboard) Model {
	urlInput := textinput.New()
	urlInput.Prompt = "URL> "
	urlInput.Placeholder = "https://example.com/movie/123"
	urlInput.CharLimit = 2048
	urlInput.Width = 60

	createInput := textinput.New()
	createInput.Prompt = "新任务URL> "
	createInput.CharLimit = 2048
	createInput.Width = 60

	m := Model{
		ctx:         ctx,
		dash:        dash,
		urlInput:    urlInput,
		createInput: createInput,
	}
	m.reload()
	return m
}

// Run 启动终端控制面板,阻塞到用户退出
func Run(ctx context.Context, dash *core.Dashboard) error {
	_, err := newProgram(ctx, dash, tea.WithAltScreen()).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// newProgram 创建程序并把控制面板的变更转成refreshMsg
// 变更也可能由Update自身触发,此时事件循环正忙,Send不能在回调里同步执行
func newProgram(ctx context.Context, dash *core.Dashboard, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, dash), opts...)
	dash.OnChange(func() {
		go p.Send(refreshMsg{})
	})
	return p
}

func (m *Model) reload() {
	m.snap = m.dash.Snapshot()
	m.monitoring = m.dash.Monitoring()
	m.taskCursor = clampCursor(m.taskCursor, len(m.snap.Tasks))
	if m.snap.Analysis != nil {
		m.linkCursor = clampCursor(m.linkCursor, len(m.snap.Analysis.FoundLinks))
	} else {
		m.linkCursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadAntiCrawlerCmd(m.dash), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case refreshMsg:
		m.reload()
		return m, nil
	case tickMsg:
		m.monitoring = m.dash.Monitoring()
		return m, tickCmd()
	case analysisStartedMsg:
		if msg.err != nil {
			m.statusMessage = "错误: " + msg.err.Error()
			return m, nil
		}
		m.analysisID = msg.handle.ID()
		m.statusMessage = "正在分析 " + msg.handle.URL()
		m.reload()
		return m, waitAnalysisCmd(m.ctx, msg.handle)
	case analysisDoneMsg:
		if msg.id != m.analysisID {
			return m, nil
		}
		m.analysisID = ""
		switch {
		case errors.Is(msg.err, core.ErrAnalysisCancelled):
			m.statusMessage = "分析已取消"
		case msg.err != nil:
			m.statusMessage = "错误: " + msg.err.Error()
		default:
			m.statusMessage = fmt.Sprintf("分析完成: 发现 %d 个资源", len(msg.result.FoundLinks))
		}
		m.linkCursor = 0
		m.reload()
		return m, nil
	case antiCrawlerMsg:
		if msg.err != nil {
			m.statusMessage = "错误: " + msg.err.Error()
			return m, nil
		}
		m.anti = msg.config
		m.headers = msg.headers
		if msg.message != "" {
			m.statusMessage = msg.message
		}
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if keyMsg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.creating {
		return m.updateCreate(keyMsg)
	}

	switch keyMsg.String() {
	case "tab":
		return m.switchTab((m.tab + 1) % tab(len(tabTitles)))
	case "shift+tab":
		return m.switchTab((m.tab + tab(len(tabTitles)) - 1) % tab(len(tabTitles)))
	}

	// 分析页的输入框接收所有字符
	if m.tab == tabAnalyze {
		return m.updateAnalyze(keyMsg)
	}

	switch keyMsg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "1", "2", "3", "4", "5":
		return m.switchTab(tab(keyMsg.String()[0] - '1'))
	}

	switch m.tab {
	case tabTasks:
		return m.updateTasks(keyMsg)
	case tabMonitor:
		if keyMsg.String() == "r" {
			m.monitoring = m.dash.Monitoring()
			m.statusMessage = "监控数据已刷新"
		}
		return m, nil
	case tabAntiCrawler:
		return m.updateAntiCrawler(keyMsg)
	}
	return m, nil
}

func (m Model) switchTab(t tab) (tea.Model, tea.Cmd) {
	m.tab = t
	m.statusMessage = ""
	if t == tabAnalyze {
		return m, m.urlInput.Focus()
	}
	m.urlInput.Blur()
	return m, nil
}

func (m Model) updateTasks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tasks := m.snap.Tasks
	switch msg.String() {
	case "up", "k":
		if m.taskCursor > 0 {
			m.taskCursor--
		}
		return m, nil
	case "down", "j":
		if m.taskCursor < len(tasks)-1 {
			m.taskCursor++
		}
		return m, nil
	case "n":
		m.creating = true
		m.createInput.Reset()
		m.statusMessage = ""
		return m, m.createInput.Focus()
	}

	if len(tasks) == 0 {
		return m, nil
	}
	selected := tasks[m.taskCursor]

	switch msg.String() {
	case " ", "p":
		if _, changed := m.dash.ToggleTaskStatus(selected.ID); changed {
			m.statusMessage = "已切换: " + selected.DisplayTitle()
		} else {
			m.statusMessage = fmt.Sprintf("%s 状态为%s,无法切换", selected.DisplayTitle(), selected.Status.Label())
		}
	case "r":
		if m.dash.RetryTask(selected.ID) {
			m.statusMessage = "已重新排队: " + selected.DisplayTitle()
		}
	case "d", "delete":
		if m.dash.DeleteTask(selected.ID) {
			m.statusMessage = "已删除: " + selected.DisplayTitle()
		}
	default:
		return m, nil
	}
	m.reload()
	return m, nil
}

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.creating = false
		m.createInput.Blur()
		m.statusMessage = "已取消新建"
		return m, nil
	case "enter":
		task, err := m.dash.CreateTask(models.CreateTaskInput{URL: m.createInput.Value()})
		if err != nil {
			m.statusMessage = "错误: " + err.Error()
			return m, nil
		}
		m.creating = false
		m.createInput.Blur()
		m.statusMessage = "已创建: " + task.DisplayTitle()
		m.taskCursor = 0
		m.reload()
		return m, nil
	}

	var cmd tea.Cmd
	m.createInput, cmd = m.createInput.Update(msg)
	return m, cmd
}

func (m Model) updateAnalyze(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		return m, startAnalysisCmd(m.ctx, m.dash, url)
	case "esc":
		if m.dash.CancelAnalysis() {
			return m, nil
		}
		m.urlInput.Reset()
		return m, nil
	case "up":
		if m.linkCursor > 0 {
			m.linkCursor--
		}
		return m, nil
	case "down":
		if m.snap.Analysis != nil && m.linkCursor < len(m.snap.Analysis.FoundLinks)-1 {
			m.linkCursor++
		}
		return m, nil
	case "ctrl+n":
		task, err := m.dash.CreateTaskFromLink(m.linkCursor)
		if err != nil {
			m.statusMessage = "错误: " + err.Error()
			return m, nil
		}
		m.statusMessage = fmt.Sprintf("已创建任务 #%d (%s)", task.ID, task.Quality)
		m.reload()
		return m, nil
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m Model) updateAntiCrawler(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.antiCursor > 0 {
			m.antiCursor--
		}
		return m, nil
	case "down", "j":
		if m.antiCursor < len(antiCrawlerToggles)-1 {
			m.antiCursor++
		}
		return m, nil
	case " ", "enter":
		cfg := m.anti
		switch m.antiCursor {
		case 0:
			cfg.UserAgentRotation = !cfg.UserAgentRotation
		case 1:
			cfg.RandomDelay = !cfg.RandomDelay
		case 2:
			cfg.ProxyEnabled = !cfg.ProxyEnabled
		case 3:
			cfg.BypassCloudflare = !cfg.BypassCloudflare
		}
		return m, saveAntiCrawlerCmd(m.dash, cfg)
	case "R":
		return m, resetAntiCrawlerCmd(m.dash)
	}
	return m, nil
}

func clampCursor(cursor, total int) int {
	if cursor >= total {
		cursor = total - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

func tickCmd() tea.Cmd {
	return tea.Tick(monitorRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func startAnalysisCmd(ctx context.Context, dash *core.Dashboard, url string) tea.Cmd {
	return func() tea.Msg {
		h, err := dash.AnalyzeURL(ctx, url)
		return analysisStartedMsg{handle: h, err: err}
	}
}

func waitAnalysisCmd(ctx context.Context, h *core.AnalysisHandle) tea.Cmd {
	return func() tea.Msg {
		result, err := h.Wait(ctx)
		return analysisDoneMsg{id: h.ID(), result: result, err: err}
	}
}

func loadAntiCrawlerCmd(dash *core.Dashboard) tea.Cmd {
	return func() tea.Msg {
		return antiCrawlerResult(dash, "")
	}
}

func saveAntiCrawlerCmd(dash *core.Dashboard, cfg models.AntiCrawlerConfig) tea.Cmd {
	return func() tea.Msg {
		if err := dash.SaveAntiCrawler(cfg); err != nil {
			return antiCrawlerMsg{err: err}
		}
		return antiCrawlerResult(dash, "反爬设置已保存")
	}
}

func resetAntiCrawlerCmd(dash *core.Dashboard) tea.Cmd {
	return func() tea.Msg {
		if _, err := dash.ResetAntiCrawler(); err != nil {
			return antiCrawlerMsg{err: err}
		}
		return antiCrawlerResult(dash, "反爬设置已恢复默认值")
	}
}

func antiCrawlerResult(dash *core.Dashboard, message string) antiCrawlerMsg {
	cfg, err := dash.AntiCrawler()
	if err != nil {
		return antiCrawlerMsg{err: err}
	}
	headers, err := dash.SafeHeaders()
	if err != nil {
		return antiCrawlerMsg{err: err}
	}
	return antiCrawlerMsg{config: cfg, headers: headers, message: message}
}
