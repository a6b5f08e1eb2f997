package player

import (
	"context"
	"sync"
	"time"
)

// CommandQueue 无界 FIFO，多个生产者、一个消费者
//
// Push never blocks and never fails. Growth is unbounded; the service logs a
// warning when the depth crosses its configured high-water mark.
type CommandQueue struct {
	mu    sync.Mutex
	items []Request
	ready chan struct{}
}

// NewCommandQueue 创建命令队列
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{ready: make(chan struct{}, 1)}
}

// Push enqueues a request and returns the queue depth after the push.
func (q *CommandQueue) Push(r Request) int {
	q.mu.Lock()
	q.items = append(q.items, r)
	depth := len(q.items)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return depth
}

// Len 当前队列长度
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *CommandQueue) pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Request{}, false
	}
	r := q.items[0]
	q.items[0] = Request{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return r, true
}

// Receive waits up to timeout for the next request. ok is false when the
// timeout elapsed first; err is set only when ctx is done.
func (q *CommandQueue) Receive(ctx context.Context, timeout time.Duration) (r Request, ok bool, err error) {
	if r, ok := q.pop(); ok {
		return r, true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if r, ok := q.pop(); ok {
				return r, true, nil
			}
		case <-timer.C:
			return Request{}, false, nil
		case <-ctx.Done():
			return Request{}, false, ctx.Err()
		}
	}
}

// Status 一条待推送的状态
type Status struct {
	Event    string // audio_status, info_request
	Target   string // 为空时推送给主客户端
	Snapshot Snapshot
}

// StatusQueue 处理器到广播器的有界队列，满时丢弃最旧的一条
type StatusQueue struct {
	ch chan Status
}

// NewStatusQueue 创建状态队列
func NewStatusQueue(size int) *StatusQueue {
	if size <= 0 {
		size = 1
	}
	return &StatusQueue{ch: make(chan Status, size)}
}

// Offer enqueues s without blocking. It reports whether an older status was
// discarded to make room.
func (q *StatusQueue) Offer(s Status) (dropped bool) {
	for {
		select {
		case q.ch <- s:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			dropped = true
		default:
		}
	}
}

// TryReceive returns the next status if one is waiting.
func (q *StatusQueue) TryReceive() (Status, bool) {
	select {
	case s := <-q.ch:
		return s, true
	default:
		return Status{}, false
	}
}

// Len 当前积压数量
func (q *StatusQueue) Len() int { return len(q.ch) }
