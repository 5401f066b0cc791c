// Package serial 提供按提交顺序串行执行任务的队列
//
// 队列无界，空闲时不占用 goroutine：有任务时启动一个执行 goroutine，
// 任务耗尽后退出。任务中再次提交的任务排在队尾，不会插队。
package serial

import (
	"context"
	"sync"
)

// Queue 串行任务队列
type Queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	closed  bool
}

// New 创建队列
func New() *Queue {
	return &Queue{}
}

// Go 提交任务；队列关闭后返回 false
func (q *Queue) Go(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.push(fn)
	return true
}

// push 调用方持有锁
func (q *Queue) push(fn func()) {
	q.tasks = append(q.tasks, fn)
	if !q.running {
		q.running = true
		go q.run()
	}
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

// Drain 等待此前提交的任务全部执行完
//
// 关闭后仍可调用，用于等待剩余任务。不要在任务内部调用。
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	q.mu.Lock()
	q.push(func() { close(done) })
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 拒绝新任务；已提交的任务继续执行
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Closed 是否已关闭
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len 待执行任务数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
