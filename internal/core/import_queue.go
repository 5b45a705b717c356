package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrDuplicateURL URL已在队列中
	ErrDuplicateURL = errors.New("URL重复")

	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("队列已关闭")
)

// ImportQueue 批量导入的待处理URL队列
// 职责: 按出现顺序排队,同一URL只入队一次,支持并发安全的Push/Pop
type ImportQueue struct {
	// 待处理URL队列
	pending chan string

	// 已入队URL集合
	seen map[string]bool

	mu     sync.RWMutex
	closed bool
}

// NewImportQueue 创建导入队列,capacity为最多可入队的URL数量
func NewImportQueue(capacity int) *ImportQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &ImportQueue{
		pending: make(chan string, capacity),
		seen:    make(map[string]bool),
	}
}

// Push 添加URL到队列
// 重复的URL返回ErrDuplicateURL,队列已满或已关闭返回ErrQueueClosed
func (q *ImportQueue) Push(rawURL string) error {
	key := strings.TrimSpace(rawURL)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.seen[key] {
		return ErrDuplicateURL
	}

	select {
	case q.pending <- key:
	default:
		return ErrQueueClosed
	}
	q.seen[key] = true
	return nil
}

// Pop 取出下一个URL
// 队列为空且已关闭,或ctx取消时返回false
func (q *ImportQueue) Pop(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case u, ok := <-q.pending:
		return u, ok
	}
}

// MarkSeen 将URL标记为已处理但不入队,之后Push同一URL返回ErrDuplicateURL
func (q *ImportQueue) MarkSeen(rawURL string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[strings.TrimSpace(rawURL)] = true
}

// Seen 检查URL是否入过队或被标记过
func (q *ImportQueue) Seen(rawURL string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.seen[strings.TrimSpace(rawURL)]
}

// PendingCount 返回待处理URL数量
func (q *ImportQueue) PendingCount() int {
	return len(q.pending)
}

// Close 关闭队列,后续Push返回ErrQueueClosed,已入队的URL仍可Pop
func (q *ImportQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		close(q.pending)
		q.closed = true
	}
}
