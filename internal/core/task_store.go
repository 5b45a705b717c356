package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

// ErrTaskNotFound 任务不存在 (仅Get使用,变更操作对未知ID静默忽略)
var ErrTaskNotFound = errors.New("任务不存在")

// StoreEventKind 任务集合变更类型
type StoreEventKind string

const (
	EventTaskCreated  StoreEventKind = "created"
	EventTaskToggled  StoreEventKind = "toggled"
	EventTaskDeleted  StoreEventKind = "deleted"
	EventTaskRetried  StoreEventKind = "retried"
	EventTaskRestored StoreEventKind = "restored"
)

// StoreEvent 任务集合变更事件
type StoreEvent struct {
	Kind StoreEventKind
	Task models.Task // restored 事件为零值
}

// Observer 变更观察者,在每次成功变更后调用 (锁外)
type Observer func(StoreEvent)

// StoreOption 任务存储选项
type StoreOption func(*TaskStore)

// WithClock 注入时钟 (测试用)
func WithClock(now func() time.Time) StoreOption {
	return func(s *TaskStore) {
		s.now = now
	}
}

// WithSeed 使用初始任务填充
func WithSeed(tasks []models.Task) StoreOption {
	return func(s *TaskStore) {
		s.tasks = make([]models.Task, len(tasks))
		for i, t := range tasks {
			s.tasks[i] = t.Clone()
			if t.ID > s.lastID {
				s.lastID = t.ID
			}
		}
	}
}

// WithObserver 注册变更观察者
func WithObserver(o Observer) StoreOption {
	return func(s *TaskStore) {
		s.observers = append(s.observers, o)
	}
}

// TaskStore 内存任务集合
// 顺序即展示顺序,新任务插在最前面
type TaskStore struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex // 串行化快照写入
	tasks     []models.Task
	lastID    int
	now       func() time.Time
	observers []Observer
}

// NewTaskStore 创建任务存储
func NewTaskStore(opts ...StoreOption) *TaskStore {
	s := &TaskStore{
		tasks: make([]models.Task, 0),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe 追加变更观察者
func (s *TaskStore) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// CreateTask 创建任务
// URL为空或无效时返回*models.ValidationError,集合不变
func (s *TaskStore) CreateTask(input models.CreateTaskInput) (models.Task, error) {
	input = input.Normalize()
	if err := models.ValidateURL(input.URL); err != nil {
		return models.Task{}, err
	}
	quality, err := models.ParseQuality(input.Quality)
	if err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	id := s.nextIDLocked()
	title := input.Title
	if title == "" {
		title = models.PlaceholderTitle(id)
	}
	task := models.Task{
		ID:        id,
		URL:       input.URL,
		Title:     title,
		Status:    models.TaskStatusPending,
		Quality:   quality,
		FileSize:  0,
		Progress:  0,
		CreatedAt: s.now(),
	}
	s.lastID = id
	s.tasks = append([]models.Task{task}, s.tasks...)
	s.mu.Unlock()

	utils.Logger.Info().
		Int("task_id", task.ID).
		Str("title", task.Title).
		Str("quality", string(task.Quality)).
		Msg("任务已创建")

	s.notify(StoreEvent{Kind: EventTaskCreated, Task: task.Clone()})
	return task.Clone(), nil
}

// nextIDLocked 分配新ID: max(现有ID, 已分配过的最大ID)+1
func (s *TaskStore) nextIDLocked() int {
	maxID := s.lastID
	for _, t := range s.tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return maxID + 1
}

// ToggleTaskStatus 切换任务状态
// running -> paused, paused/pending -> running, 其余状态和未知ID不变
// 返回切换后的任务和是否发生了变化
func (s *TaskStore) ToggleTaskStatus(id int) (models.Task, bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		utils.Debugf("切换状态: 任务 %d 不存在", id)
		return models.Task{}, false
	}

	t := &s.tasks[idx]
	switch t.Status {
	case models.TaskStatusRunning:
		t.Status = models.TaskStatusPaused
	case models.TaskStatusPaused, models.TaskStatusPending:
		t.Status = models.TaskStatusRunning
	default:
		snapshot := t.Clone()
		s.mu.Unlock()
		utils.Debugf("切换状态: 任务 %d 处于 %s,忽略", id, snapshot.Status)
		return snapshot, false
	}
	task := t.Clone()
	s.mu.Unlock()

	utils.Logger.Info().
		Int("task_id", task.ID).
		Str("title", task.Title).
		Str("status", task.Status.String()).
		Msg("任务状态已切换")

	s.notify(StoreEvent{Kind: EventTaskToggled, Task: task.Clone()})
	return task, true
}

// DeleteTask 删除任务,保持其余任务的相对顺序
// 未知ID返回false
func (s *TaskStore) DeleteTask(id int) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		utils.Debugf("删除任务: 任务 %d 不存在", id)
		return false
	}
	task := s.tasks[idx]
	s.tasks = append(s.tasks[:idx:idx], s.tasks[idx+1:]...)
	s.mu.Unlock()

	utils.Logger.Info().
		Int("task_id", task.ID).
		Str("title", task.Title).
		Msg("任务已删除")

	s.notify(StoreEvent{Kind: EventTaskDeleted, Task: task})
	return true
}

// RetryTask 重试任务: 状态置为pending,进度清零,清除错误信息
// 对任何状态都生效,未知ID返回false
func (s *TaskStore) RetryTask(id int) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		utils.Debugf("重试任务: 任务 %d 不存在", id)
		return false
	}
	t := &s.tasks[idx]
	prev := t.Status
	t.Status = models.TaskStatusPending
	t.Progress = 0
	t.ErrorMessage = nil
	// 下载路径只属于completed状态
	t.DownloadPath = nil
	task := t.Clone()
	s.mu.Unlock()

	utils.Logger.Info().
		Int("task_id", task.ID).
		Str("title", task.Title).
		Str("from", prev.String()).
		Msg("任务已重置为等待中")

	s.notify(StoreEvent{Kind: EventTaskRetried, Task: task.Clone()})
	return true
}

// Tasks 返回任务列表副本 (最新在前)
func (s *TaskStore) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get 按ID查找任务
func (s *TaskStore) Get(id int) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	return s.tasks[idx].Clone(), nil
}

// Len 返回任务数量
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Stats 返回各状态任务数量
func (s *TaskStore) Stats() models.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CountTasks(s.tasks)
}

// Snapshot 导出当前任务集合
func (s *TaskStore) Snapshot() *models.StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		tasks[i] = t.Clone()
	}
	return &models.StoreSnapshot{
		Tasks:   tasks,
		LastID:  s.lastID,
		SavedAt: s.now(),
	}
}

// Restore 用快照替换当前任务集合
func (s *TaskStore) Restore(snap *models.StoreSnapshot) error {
	if snap == nil {
		return fmt.Errorf("快照为空")
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("快照校验失败: %w", err)
	}

	s.mu.Lock()
	s.tasks = make([]models.Task, len(snap.Tasks))
	s.lastID = snap.LastID
	for i, t := range snap.Tasks {
		s.tasks[i] = t.Clone()
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	count := len(s.tasks)
	s.mu.Unlock()

	utils.Infof("已恢复 %d 个任务", count)
	s.notify(StoreEvent{Kind: EventTaskRestored})
	return nil
}

// SaveSnapshot 将任务集合保存到文件
// 并发调用按顺序执行,每次都在持有写入锁后取快照,最后落盘的总是最新状态
func (s *TaskStore) SaveSnapshot(path string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.Snapshot().SaveToFile(path); err != nil {
		return fmt.Errorf("保存任务快照失败: %w", err)
	}
	utils.Debugf("任务快照已保存: %s", path)
	return nil
}

// LoadSnapshot 从文件恢复任务集合
func (s *TaskStore) LoadSnapshot(path string) error {
	snap, err := models.LoadStoreSnapshot(path)
	if err != nil {
		return fmt.Errorf("加载任务快照失败: %w", err)
	}
	return s.Restore(snap)
}

func (s *TaskStore) indexLocked(id int) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *TaskStore) notify(ev StoreEvent) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()

	for _, o := range observers {
		o(ev)
	}
}
