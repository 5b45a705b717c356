package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
)

var statusStyles = map[models.TaskStatus]lipgloss.Style{
	models.TaskStatusCompleted: okStyle,
	models.TaskStatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	models.TaskStatusPaused:    warnStyle,
	models.TaskStatusPending:   mutedStyle,
	models.TaskStatusFailed:    errorStyle,
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 100
	}

	var body string
	switch m.tab {
	case tabTasks:
		body = m.viewTasks(width)
	case tabAnalyze:
		body = m.viewAnalyze(width)
	case tabMonitor:
		body = m.viewMonitor(width)
	case tabAntiCrawler:
		body = m.viewAntiCrawler(width)
	default:
		body = m.viewOverview(width)
	}

	header := titleStyle.Render("影视资源爬虫控制台") + "\n" + m.renderTabs()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(width))
}

func (m Model) renderTabs() string {
	parts := make([]string, len(tabTitles))
	for i, title := range tabTitles {
		label := fmt.Sprintf("%d %s", i+1, title)
		if tab(i) == m.tab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = m.hint()
		return mutedStyle.Render(truncate(msg, width-2))
	}
	style := okStyle
	if strings.HasPrefix(msg, "错误") {
		style = errorStyle
	}
	return style.Render(truncate(msg, width-2))
}

func (m Model) hint() string {
	switch m.tab {
	case tabTasks:
		if m.creating {
			return "enter: 创建 | esc: 取消"
		}
		return "up/down: 移动 | space/p: 开始/暂停 | r: 重试 | d: 删除 | n: 新建 | tab: 切换页面 | q: 退出"
	case tabAnalyze:
		return "enter: 开始分析 | esc: 取消分析/清空 | up/down: 选择资源 | ctrl+n: 创建任务 | tab: 切换页面"
	case tabMonitor:
		return "r: 刷新 | tab: 切换页面 | q: 退出"
	case tabAntiCrawler:
		return "up/down: 移动 | space: 切换并保存 | R: 恢复默认 | tab: 切换页面 | q: 退出"
	}
	return "tab/1-5: 切换页面 | q: 退出"
}

func (m Model) viewOverview(width int) string {
	stats := m.snap.Stats
	cards := []struct {
		label string
		value int
	}{
		{"总任务", stats.Total},
		{"已完成", stats.Completed},
		{"下载中", stats.Running},
		{"已暂停", stats.Paused},
		{"等待中", stats.Pending},
		{"失败", stats.Failed},
	}

	rendered := make([]string, len(cards))
	for i, c := range cards {
		rendered[i] = panelStyle.Render(fmt.Sprintf("%s\n%s", mutedStyle.Render(c.label), titleStyle.Render(fmt.Sprint(c.value))))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	lines := []string{"最近任务", ""}
	for i, t := range m.snap.Tasks {
		if i >= 5 {
			break
		}
		lines = append(lines, m.taskLine(t, width))
	}
	if len(m.snap.Tasks) == 0 {
		lines = append(lines, mutedStyle.Render("暂无任务"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, row, panelStyle.Width(width-2).Render(strings.Join(lines, "\n")))
}

func (m Model) taskLine(t models.Task, width int) string {
	style, ok := statusStyles[t.Status]
	if !ok {
		style = mutedStyle
	}
	line := fmt.Sprintf("#%-3d %s  %s  %s  %s  %s",
		t.ID,
		style.Render(fmt.Sprintf("%-4s", t.Status.Label())),
		t.DisplayTitle(),
		t.Quality,
		utils.FormatProgress(t.Progress),
		utils.FormatTaskSize(t.FileSize),
	)
	return truncate(line, width-6)
}

func (m Model) viewTasks(width int) string {
	lines := make([]string, 0, len(m.snap.Tasks)+4)
	if len(m.snap.Tasks) == 0 {
		lines = append(lines, mutedStyle.Render("暂无任务,按 n 新建"))
	}
	for i, t := range m.snap.Tasks {
		line := m.taskLine(t, width)
		if i == m.taskCursor {
			line = selStyle.Render(line)
		}
		lines = append(lines, line)
	}
	list := panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))

	var details string
	if len(m.snap.Tasks) > 0 {
		t := m.snap.Tasks[m.taskCursor]
		d := []string{
			kv("标题", t.DisplayTitle()),
			kv("地址", t.URL),
			kv("状态", t.Status.Label()),
			kv("清晰度", string(t.Quality)),
			kv("进度", utils.FormatProgress(t.Progress)),
			kv("大小", utils.FormatTaskSize(t.FileSize)),
			kv("创建时间", utils.FormatDate(t.CreatedAt)),
		}
		if t.DownloadPath != nil {
			d = append(d, kv("保存路径", *t.DownloadPath))
		}
		if t.ErrorMessage != nil {
			d = append(d, errorStyle.Render(kv("错误", *t.ErrorMessage)))
		}
		details = panelStyle.Width(width - 2).Render(strings.Join(d, "\n"))
	}

	parts := []string{list}
	if details != "" {
		parts = append(parts, details)
	}
	if m.creating {
		parts = append(parts, panelStyle.Width(width-2).Render(m.createInput.View()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewAnalyze(width int) string {
	input := panelStyle.Width(width - 2).Render(m.urlInput.View())
	if m.snap.Analyzing {
		return lipgloss.JoinVertical(lipgloss.Left, input, panelStyle.Width(width-2).Render(warnStyle.Render("分析中...")))
	}
	r := m.snap.Analysis
	if r == nil {
		return lipgloss.JoinVertical(lipgloss.Left, input, panelStyle.Width(width-2).Render(mutedStyle.Render("输入网址后按 enter 开始分析")))
	}

	info := []string{
		kv("标题", r.Title),
		kv("域名", r.Domain),
		kv("内容类型", r.ContentType),
		kv("推荐策略", r.RecommendedStrategy),
		kv("robots.txt", fmt.Sprintf("允许=%s 爬取间隔=%d秒", yesNo(r.RobotsTxt.Allowed), r.RobotsTxt.CrawlDelay)),
		kv("法律状态", r.LegalStatus),
		kv("分析时间", utils.FormatDate(r.AnalyzedAt)),
	}

	links := []string{"发现的资源", ""}
	for i, l := range r.FoundLinks {
		line := fmt.Sprintf("%-5s %-6s %-8s %s", l.Type, l.Quality, l.Size, l.URL)
		if i == m.linkCursor {
			line = selStyle.Render(truncate(line, width-6))
		} else {
			line = truncate(line, width-6)
		}
		links = append(links, line)
	}

	measures := []string{"反爬措施", ""}
	for _, am := range r.AntiCrawlerMeasures {
		bypass := okStyle.Render("可绕过")
		if !am.Bypassable {
			bypass = errorStyle.Render("难以绕过")
		}
		measures = append(measures, fmt.Sprintf("[%s] %s %s", am.Level, strings.Join(am.Measures, ", "), bypass))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		input,
		panelStyle.Width(width-2).Render(strings.Join(info, "\n")),
		panelStyle.Width(width-2).Render(strings.Join(links, "\n")),
		panelStyle.Width(width-2).Render(strings.Join(measures, "\n")),
	)
}

func (m Model) viewMonitor(width int) string {
	snap := m.monitoring

	cards := make([]string, len(snap.SystemStats))
	for i, s := range snap.SystemStats {
		cards[i] = panelStyle.Render(fmt.Sprintf("%s\n%s", mutedStyle.Render(s.Label), titleStyle.Render(s.Value)))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	rates := []string{"成功率", ""}
	for _, s := range snap.SuccessRate {
		rates = append(rates, fmt.Sprintf("%s %d%% %s", s.Name, s.Value, bar(float64(s.Value), 100, 20)))
	}

	var maxSpeed float64
	for _, p := range snap.Speed {
		if p.Speed > maxSpeed {
			maxSpeed = p.Speed
		}
	}
	speeds := []string{"下载速度 (MB/s)", ""}
	for _, p := range snap.Speed {
		speeds = append(speeds, fmt.Sprintf("%s %5.1f %s", p.Name, p.Speed, bar(p.Speed, maxSpeed, 20)))
	}

	alerts := []string{"告警", ""}
	for _, a := range snap.Alerts {
		style := mutedStyle
		switch a.Level {
		case models.AlertLevelError:
			style = errorStyle
		case models.AlertLevelWarning:
			style = warnStyle
		case models.AlertLevelSuccess:
			style = okStyle
		}
		alerts = append(alerts, truncate(fmt.Sprintf("%s %s %s", a.Time, style.Render(string(a.Level)), a.Message), width-6))
	}

	half := (width - 4) / 2
	charts := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Width(half).Render(strings.Join(rates, "\n")),
		panelStyle.Width(half).Render(strings.Join(speeds, "\n")),
	)
	return lipgloss.JoinVertical(lipgloss.Left, row, charts, panelStyle.Width(width-2).Render(strings.Join(alerts, "\n")))
}

func (m Model) viewAntiCrawler(width int) string {
	values := []bool{m.anti.UserAgentRotation, m.anti.RandomDelay, m.anti.ProxyEnabled, m.anti.BypassCloudflare}
	lines := []string{"基础设置", ""}
	for i, label := range antiCrawlerToggles {
		mark := " "
		if values[i] {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s", mark, label)
		if i == m.antiCursor {
			line = selStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "",
		kv("爬取间隔", fmt.Sprintf("%d 毫秒", m.anti.CrawlDelay)),
		kv("最大重试", fmt.Sprint(m.anti.MaxRetries)),
		kv("重试间隔", fmt.Sprintf("%d 毫秒", m.anti.RetryDelay)),
	)

	names := make([]string, 0, len(m.headers))
	for name := range m.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	headers := []string{"生效请求头", ""}
	for _, name := range names {
		headers = append(headers, truncate(kv(name, m.headers[name]), width-6))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Width(width-2).Render(strings.Join(lines, "\n")),
		panelStyle.Width(width-2).Render(strings.Join(headers, "\n")),
	)
}

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}

func bar(value, max float64, width int) string {
	if max <= 0 || value <= 0 {
		return ""
	}
	n := int(value / max * float64(width))
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
