package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// DefaultAnalysisDelay 模拟分析耗时
const DefaultAnalysisDelay = 2000 * time.Millisecond

var (
	// ErrAnalysisInFlight 已有分析在进行中
	ErrAnalysisInFlight = errors.New("已有分析任务正在进行")

	// ErrAnalysisCancelled 分析已取消
	ErrAnalysisCancelled = errors.New("分析已取消")
)

// AnalyzerOption 分析器选项
type AnalyzerOption func(*Analyzer)

// WithAnalyzerClock 注入时钟
func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.now = now
	}
}

// WithResultHook 注册结果回调 (结果送达或取消时调用,锁外)
func WithResultHook(hook func(*AnalysisHandle)) AnalyzerOption {
	return func(a *Analyzer) {
		a.hooks = append(a.hooks, hook)
	}
}

// Analyzer 分析模拟器
// 同一时间只允许一个分析,延迟结束后返回固定的分析结果
type Analyzer struct {
	delay time.Duration
	now   func() time.Time
	hooks []func(*AnalysisHandle)

	mu      sync.Mutex
	current *AnalysisHandle
	last    *models.AnalysisResult
}

// NewAnalyzer 创建分析模拟器,delay<=0时使用默认值
func NewAnalyzer(delay time.Duration, opts ...AnalyzerOption) *Analyzer {
	if delay <= 0 {
		delay = DefaultAnalysisDelay
	}
	a := &Analyzer{
		delay: delay,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Delay 返回模拟延迟
func (a *Analyzer) Delay() time.Duration {
	return a.delay
}

// Analyze 开始分析URL
// URL无效时返回*models.ValidationError,已有分析进行中时返回ErrAnalysisInFlight
// ctx取消等同于调用handle.Cancel
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (*AnalysisHandle, error) {
	if err := models.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.current != nil {
		a.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}

	h := &AnalysisHandle{
		id:       uuid.NewString(),
		url:      rawURL,
		analyzer: a,
		done:     make(chan struct{}),
	}
	a.current = h
	h.timer = time.AfterFunc(a.delay, h.complete)
	a.mu.Unlock()

	utils.Logger.Info().
		Str("analysis_id", h.id).
		Str("url", rawURL).
		Dur("delay", a.delay).
		Msg("开始分析URL")

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.Cancel()
			case <-h.done:
			}
		}()
	}

	return h, nil
}

func (a *Analyzer) addHook(hook func(*AnalysisHandle)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

// Busy 是否有分析正在进行
func (a *Analyzer) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Current 返回进行中的分析,没有时返回nil
func (a *Analyzer) Current() *AnalysisHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Last 返回最近一次送达的分析结果副本
func (a *Analyzer) Last() *models.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last.Clone()
}

// CancelCurrent 取消进行中的分析,返回是否取消了
func (a *Analyzer) CancelCurrent() bool {
	h := a.Current()
	if h == nil {
		return false
	}
	return h.Cancel()
}

// finish 结束分析,result为nil表示取消
// 返回false表示该handle已经结束过
func (a *Analyzer) finish(h *AnalysisHandle, result *models.AnalysisResult, err error) bool {
	a.mu.Lock()
	if h.finished {
		a.mu.Unlock()
		return false
	}
	h.finished = true
	h.result = result
	h.err = err
	if a.current == h {
		a.current = nil
	}
	if result != nil {
		a.last = result
	}
	close(h.done)
	hooks := a.hooks
	a.mu.Unlock()

	for _, hook := range hooks {
		hook(h)
	}
	return true
}

// RegistrableDomain 返回URL的可注册域名 (如 www.example.co.uk -> example.co.uk)
// 无法识别时返回主机名
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// AnalysisHandle 一次分析的句柄
type AnalysisHandle struct {
	id       string
	url      string
	analyzer *Analyzer
	timer    *time.Timer
	done     chan struct{}

	// 以下字段由analyzer.mu保护
	finished bool
	result   *models.AnalysisResult
	err      error
}

// ID 分析ID
func (h *AnalysisHandle) ID() string {
	return h.id
}

// URL 被分析的地址
func (h *AnalysisHandle) URL() string {
	return h.url
}

// Done 分析结束 (完成或取消) 时关闭
func (h *AnalysisHandle) Done() <-chan struct{} {
	return h.done
}

// Result 返回分析结果
// 未结束时返回(nil, nil),取消时返回ErrAnalysisCancelled
func (h *AnalysisHandle) Result() (*models.AnalysisResult, error) {
	h.analyzer.mu.Lock()
	defer h.analyzer.mu.Unlock()
	return h.result.Clone(), h.err
}

// Wait 等待分析结束
func (h *AnalysisHandle) Wait(ctx context.Context) (*models.AnalysisResult, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel 取消分析,待送达的结果被丢弃
// 返回false表示分析已经结束
func (h *AnalysisHandle) Cancel() bool {
	h.timer.Stop()
	if !h.analyzer.finish(h, nil, ErrAnalysisCancelled) {
		return false
	}
	utils.Logger.Info().
		Str("analysis_id", h.id).
		Str("url", h.url).
		Msg("分析已取消")
	return true
}

func (h *AnalysisHandle) complete() {
	result := models.CannedAnalysis(h.url, RegistrableDomain(h.url), h.analyzer.now())
	if !h.analyzer.finish(h, result, nil) {
		return
	}
	utils.Logger.Info().
		Str("analysis_id", h.id).
		Str("domain", result.Domain).
		Int("links", len(result.FoundLinks)).
		Msg("分析完成")
}

// CreateTaskFromLink 用分析结果中的资源创建任务
func CreateTaskFromLink(store *TaskStore, result *models.AnalysisResult, link models.FoundLink) (models.Task, error) {
	if result == nil {
		return models.Task{}, fmt.Errorf("没有可用的分析结果")
	}
	return store.CreateTask(result.TaskInputForLink(link))
}
