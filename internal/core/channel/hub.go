package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-widgetsync/internal/util/serial"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"go.uber.org/multierr"
)

// ============================================================================
//                              Hub
// ============================================================================

// Hub 会话的公共部分：目标、通道表、就绪门与身份通知
//
// 传输实现嵌入 Hub，再补上 OpenChannel 与 Close。
type Hub struct {
	exec *serial.Queue

	mu       sync.RWMutex
	key      types.SessionKey
	targets  map[string]pkgif.OpenHandler
	comms    map[types.ModelID]*Comm
	keyFns   map[uint64]pkgif.KeyChangeFunc
	nextID   uint64
	closed   bool
	ready    chan struct{}
	readyOne sync.Once
	done     chan struct{}
}

// NewHub 创建 Hub
func NewHub(key types.SessionKey) *Hub {
	return &Hub{
		exec:    serial.New(),
		key:     key,
		targets: make(map[string]pkgif.OpenHandler),
		comms:   make(map[types.ModelID]*Comm),
		keyFns:  make(map[uint64]pkgif.KeyChangeFunc),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Key 当前会话标识
func (h *Hub) Key() types.SessionKey {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.key
}

// SetKey 更新会话标识并通知监听者
func (h *Hub) SetKey(key types.SessionKey) {
	h.mu.Lock()
	old := h.key
	if old == key || h.closed {
		h.mu.Unlock()
		return
	}
	h.key = key
	fns := make([]pkgif.KeyChangeFunc, 0, len(h.keyFns))
	for _, fn := range h.keyFns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	logger.Info("会话标识变更", "old", old.ShortString(), "new", key.ShortString())
	h.exec.Go(func() {
		for _, fn := range fns {
			fn(old, key)
		}
	})
}

// OnKeyChange 注册身份变更回调
func (h *Hub) OnKeyChange(fn pkgif.KeyChangeFunc) pkgif.Handle {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.keyFns[id] = fn
	h.mu.Unlock()
	return pkgif.HandleFunc(func() {
		h.mu.Lock()
		delete(h.keyFns, id)
		h.mu.Unlock()
	})
}

// MarkReady 打开就绪门
func (h *Hub) MarkReady() {
	h.readyOne.Do(func() { close(h.ready) })
}

// Ready 等待会话就绪
func (h *Hub) Ready(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	default:
	}
	select {
	case <-h.ready:
		return nil
	case <-h.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 会话关闭时关闭
func (h *Hub) Done() <-chan struct{} { return h.done }

// Closed 是否已关闭
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// RegisterTarget 注册远端打开通道时的处理器
func (h *Hub) RegisterTarget(target string, handler pkgif.OpenHandler) (pkgif.Handle, error) {
	if target == "" {
		return nil, ErrEmptyTarget
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrSessionClosed
	}
	if _, ok := h.targets[target]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetRegistered, target)
	}
	h.targets[target] = handler
	return pkgif.HandleFunc(func() {
		h.mu.Lock()
		delete(h.targets, target)
		h.mu.Unlock()
	}), nil
}

// Comm 按 ID 查找通道
func (h *Hub) Comm(id types.ModelID) (*Comm, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.comms[id]
	return c, ok
}

// CommCount 打开的通道数
func (h *Hub) CommCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.comms)
}

// NewComm 本端发起打开时登记通道
func (h *Hub) NewComm(id types.ModelID, target string, conn Conn) (*Comm, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrSessionClosed
	}
	if _, ok := h.comms[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCommExists, id)
	}
	c := newComm(h, id, target, conn)
	h.comms[id] = c
	return c, nil
}

func (h *Hub) removeComm(id types.ModelID, c *Comm) {
	h.mu.Lock()
	if cur, ok := h.comms[id]; ok && cur == c {
		delete(h.comms, id)
	}
	h.mu.Unlock()
}

// ============================================================================
//                              入站分发
// ============================================================================

// DispatchOpen 远端打开通道
//
// 目标未注册时立即回送关闭。
func (h *Hub) DispatchOpen(conn Conn, target string, id types.ModelID, msg *pkgif.Message) {
	h.exec.Go(func() {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return
		}
		handler, ok := h.targets[target]
		if !ok {
			h.mu.Unlock()
			logger.Warn("未注册的通道目标，拒绝打开", "target", target, "comm", id.ShortString())
			if err := conn.CloseComm(context.Background(), id, nil); err != nil {
				logger.Debug("回送关闭失败", "comm", id.ShortString(), "err", err)
			}
			return
		}
		if _, dup := h.comms[id]; dup {
			h.mu.Unlock()
			logger.Warn("重复的通道 ID，忽略打开", "comm", id.ShortString())
			return
		}
		c := newComm(h, id, target, conn)
		h.comms[id] = c
		h.mu.Unlock()

		handler(c, msg)
	})
}

// DispatchMessage 远端消息
func (h *Hub) DispatchMessage(id types.ModelID, msg *pkgif.Message) {
	h.exec.Go(func() {
		c, ok := h.Comm(id)
		if !ok {
			logger.Debug("消息的通道不存在，丢弃", "comm", id.ShortString())
			return
		}
		c.deliver(msg)
	})
}

// DispatchClose 远端关闭
func (h *Hub) DispatchClose(id types.ModelID, msg *pkgif.Message) {
	h.exec.Go(func() {
		c, ok := h.Comm(id)
		if !ok {
			return
		}
		c.remoteClose(msg)
	})
}

// ============================================================================
//                              关闭
// ============================================================================

// Shutdown 关闭全部通道并拒绝后续操作
//
// notify 为 true 时每个通道都会向远端发送关闭。
func (h *Hub) Shutdown(ctx context.Context, notify bool) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	comms := make([]*Comm, 0, len(h.comms))
	for _, c := range h.comms {
		comms = append(comms, c)
	}
	h.mu.Unlock()

	var errs error
	for _, c := range comms {
		if notify {
			errs = multierr.Append(errs, c.Close(ctx, nil))
			continue
		}
		if c.markClosed() {
			c := c
			h.exec.Go(func() { c.fireClose(nil) })
		}
	}
	close(h.done)
	h.exec.Close()
	return errs
}

// Drain 等待已到达的入站事件分发完成
func (h *Hub) Drain(ctx context.Context) error {
	return h.exec.Drain(ctx)
}
