package queue

import (
	"context"
	"errors"
	"sync"

	ring "github.com/eapache/queue"
)

// ErrClosed 队列已关闭
var ErrClosed = errors.New("queue closed")

// Unbounded 无界FIFO队列，支持多生产者多消费者
// 底层使用 eapache/queue 环形缓冲区，Pop 在队列为空时阻塞直到有新元素或 ctx 结束
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  *ring.Queue
	limit  int
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

// New 创建队列，limit <= 0 表示不限制积压长度
func New[T any](limit int) *Unbounded[T] {
	return &Unbounded[T]{
		items: ring.New(),
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push 入队。超过积压上限时丢弃最旧元素并返回 dropped=true
func (q *Unbounded[T]) Push(v T) (dropped bool, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	if q.limit > 0 && q.items.Length() >= q.limit {
		q.items.Remove()
		dropped = true
	}
	q.items.Add(v)
	q.mu.Unlock()

	q.signal()
	return dropped, nil
}

// Pop 出队，队列为空时阻塞
// 关闭后仍可取出剩余元素，取空后返回 ErrClosed
func (q *Unbounded[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			v := q.items.Remove().(T)
			more := q.items.Length() > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		var zero T
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop 非阻塞出队
func (q *Unbounded[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.items.Length() == 0 {
		return zero, false
	}
	return q.items.Remove().(T), true
}

// Len 当前积压长度
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close 关闭队列，唤醒所有等待者。重复调用无副作用
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Closed 是否已关闭
func (q *Unbounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Unbounded[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
