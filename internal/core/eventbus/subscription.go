package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
)

// ============================================================================
//                              Subscription
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan any
	closeOnce sync.Once
	closed    atomic.Bool
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅
//
// 先从总线移除（之后不会再有发射者写入），再关闭通道。可多次调用。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// ============================================================================
//                              Emitter
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件；事件类型必须与发射器类型一致（非指针）
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if e.bus.closed.Load() {
		return ErrClosed
	}
	return e.node.emit(event)
}

// Close 关闭发射器；引用计数归零时尝试删除节点
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}

// ============================================================================
//                              回调订阅
// ============================================================================

// On 订阅 T 类型事件并在后台 goroutine 中串行调用 fn
//
// 返回的句柄关闭订阅；总线关闭后 goroutine 自动退出。
func On[T any](bus pkgif.EventBus, fn func(T), opts ...pkgif.SubscriptionOpt) (pkgif.Handle, error) {
	sub, err := bus.Subscribe(new(T), opts...)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range sub.Out() {
			if e, ok := evt.(T); ok {
				fn(e)
			}
		}
	}()
	return pkgif.HandleFunc(func() {
		_ = sub.Close()
		<-done
	}), nil
}

// Emit 一次性发射事件（总线为 nil 时忽略）
func Emit[T any](bus pkgif.EventBus, evt T) {
	if bus == nil {
		return
	}
	em, err := bus.Emitter(new(T))
	if err != nil {
		logger.Debug("获取发射器失败", "type", reflect.TypeOf(evt), "error", err)
		return
	}
	defer em.Close()
	if err := em.Emit(evt); err != nil {
		logger.Debug("发射事件失败", "type", reflect.TypeOf(evt), "error", err)
	}
}
