package channel

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// maxPending 未注册回调前最多暂存的入站消息数
const maxPending = 1024

// Conn 通道的底层传输
type Conn interface {
	// SendComm 发送 comm_msg
	SendComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error

	// CloseComm 发送 comm_close
	CloseComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error
}

// ============================================================================
//                              Comm
// ============================================================================

// Comm 会话上的一条通道，实现 interfaces.Channel
type Comm struct {
	id     types.ModelID
	target string
	conn   Conn
	hub    *Hub

	mu      sync.Mutex
	onMsg   map[uint64]pkgif.MessageFunc
	onClose map[uint64]pkgif.MessageFunc
	nextID  uint64
	pending []*pkgif.Message
	// replaying 补发任务排队或执行中；期间新到的消息追加到 pending 之后
	replaying bool
	closed    bool
}

var _ pkgif.Channel = (*Comm)(nil)

func newComm(hub *Hub, id types.ModelID, target string, conn Conn) *Comm {
	return &Comm{
		id:      id,
		target:  target,
		conn:    conn,
		hub:     hub,
		onMsg:   make(map[uint64]pkgif.MessageFunc),
		onClose: make(map[uint64]pkgif.MessageFunc),
	}
}

// ID 通道标识
func (c *Comm) ID() types.ModelID { return c.id }

// Target 目标名
func (c *Comm) Target() string { return c.target }

// Send 发送消息
func (c *Comm) Send(ctx context.Context, msg *pkgif.Message) error {
	if c.Closed() {
		return ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	return c.conn.SendComm(ctx, c.id, msg)
}

// OnMessage 注册消息回调
//
// 第一个回调注册时在会话队列上补发暂存的消息；补发完成前到达的消息
// 排在暂存之后，保持到达顺序。
func (c *Comm) OnMessage(fn pkgif.MessageFunc) pkgif.Handle {
	c.mu.Lock()
	c.nextID++
	hid := c.nextID
	c.onMsg[hid] = fn
	replay := len(c.pending) > 0 && !c.replaying
	if replay {
		c.replaying = true
	}
	c.mu.Unlock()

	if replay {
		c.hub.exec.Go(c.replayPending)
	}
	return pkgif.HandleFunc(func() {
		c.mu.Lock()
		delete(c.onMsg, hid)
		c.mu.Unlock()
	})
}

// replayPending 在会话队列上按序补发，直到暂存为空或没有回调
func (c *Comm) replayPending() {
	for {
		c.mu.Lock()
		if c.closed || len(c.pending) == 0 || len(c.onMsg) == 0 {
			c.replaying = false
			c.mu.Unlock()
			return
		}
		msg := c.pending[0]
		c.pending = c.pending[1:]
		fns := c.handlersLocked()
		c.mu.Unlock()

		for _, fn := range fns {
			fn(msg)
		}
	}
}

func (c *Comm) handlersLocked() []pkgif.MessageFunc {
	fns := make([]pkgif.MessageFunc, 0, len(c.onMsg))
	for _, fn := range c.onMsg {
		fns = append(fns, fn)
	}
	return fns
}

// OnClose 注册关闭回调
func (c *Comm) OnClose(fn pkgif.MessageFunc) pkgif.Handle {
	c.mu.Lock()
	c.nextID++
	hid := c.nextID
	c.onClose[hid] = fn
	c.mu.Unlock()
	return pkgif.HandleFunc(func() {
		c.mu.Lock()
		delete(c.onClose, hid)
		c.mu.Unlock()
	})
}

// Close 本端关闭通道并通知远端；重复关闭无操作
func (c *Comm) Close(ctx context.Context, data *pkgif.Message) error {
	if !c.markClosed() {
		return nil
	}
	err := c.conn.CloseComm(ctx, c.id, data)
	c.hub.exec.Go(func() { c.fireClose(data) })
	return err
}

// Closed 是否已关闭
func (c *Comm) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Comm) markClosed() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	c.pending = nil
	c.mu.Unlock()
	c.hub.removeComm(c.id, c)
	return true
}

// deliver 在会话队列上调用
func (c *Comm) deliver(msg *pkgif.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if len(c.onMsg) == 0 || c.replaying {
		if len(c.pending) >= maxPending {
			logger.Warn("通道暂存已满，丢弃最早的消息", "comm", c.id.ShortString())
			c.pending = c.pending[1:]
		}
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	fns := c.handlersLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// remoteClose 在会话队列上调用
func (c *Comm) remoteClose(msg *pkgif.Message) {
	if !c.markClosed() {
		return
	}
	c.fireClose(msg)
}

func (c *Comm) fireClose(msg *pkgif.Message) {
	c.mu.Lock()
	fns := make([]pkgif.MessageFunc, 0, len(c.onClose))
	for _, fn := range c.onClose {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// ============================================================================
//                              辅助
// ============================================================================

// CloneMessage 深度复制消息，跨会话边界传递时使用
func CloneMessage(msg *pkgif.Message) *pkgif.Message {
	if msg == nil {
		return nil
	}
	out := &pkgif.Message{
		ID:       msg.ID,
		ParentID: msg.ParentID,
	}
	if msg.Data != nil {
		out.Data = statetree.CloneMapping(msg.Data)
	}
	if msg.Metadata != nil {
		out.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			out.Metadata[k] = v
		}
	}
	if len(msg.Buffers) > 0 {
		out.Buffers = make([]statetree.Buffer, len(msg.Buffers))
		for i, b := range msg.Buffers {
			out.Buffers[i] = statetree.Clone(b).(statetree.Buffer)
		}
	}
	return out
}
