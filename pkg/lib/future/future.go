// Package future 提供只完成一次的异步结果
//
// Future 代替回调链：生产者调用 Resolve / Reject 恰好一次，
// 消费者通过 Done 通道或 Wait(ctx) 等待。Wait 的 ctx 只影响等待方，
// 不会取消生产者。
package future

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyCompleted 重复完成
	ErrAlreadyCompleted = errors.New("future: already completed")

	// ErrPending 尚未完成
	ErrPending = errors.New("future: pending")
)

// Future 一次性异步结果
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New 创建未完成的 Future
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved 创建已成功的 Future
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Failed 创建已失败的 Future
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve 以成功值完成；已完成时返回 ErrAlreadyCompleted
func (f *Future[T]) Resolve(v T) error {
	return f.complete(v, nil)
}

// Reject 以错误完成；已完成时返回 ErrAlreadyCompleted
func (f *Future[T]) Reject(err error) error {
	var zero T
	return f.complete(zero, err)
}

// Complete 同时给出值与错误（err 非 nil 时视为失败）
func (f *Future[T]) Complete(v T, err error) error {
	return f.complete(v, err)
}

func (f *Future[T]) complete(v T, err error) error {
	completed := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		completed = true
	})
	if !completed {
		return ErrAlreadyCompleted
	}
	return nil
}

// Done 完成时关闭的通道
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone 是否已完成
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait 等待完成或 ctx 结束
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result 非阻塞读取结果；未完成时返回 ErrPending
func (f *Future[T]) Result() (T, error) {
	if !f.IsDone() {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Then 在完成后调用 fn（在独立 goroutine 中）
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

// All 等待全部完成，返回第一个错误
func All[T any](ctx context.Context, fs ...*Future[T]) error {
	for _, f := range fs {
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
