package interfaces

import "sync"

// Handle 可释放的注册句柄
//
// Close 是幂等的。
type Handle interface {
	Close() error
}

// HandleFunc 把函数包装为 Handle（只执行一次）
func HandleFunc(fn func()) Handle {
	return &funcHandle{fn: fn}
}

type funcHandle struct {
	once sync.Once
	fn   func()
}

func (h *funcHandle) Close() error {
	h.once.Do(func() {
		if h.fn != nil {
			h.fn()
		}
	})
	return nil
}

// NopHandle 无操作句柄
var NopHandle Handle = HandleFunc(nil)
