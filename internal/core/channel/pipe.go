package channel

import (
	"context"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// ============================================================================
//                              PipeSession
// ============================================================================

// PipeSession 进程内会话的一端
//
// 两端共享同一个会话标识；消息跨端传递时深度复制，
// 每端按到达顺序串行分发。
type PipeSession struct {
	*Hub
	name string
	peer *PipeSession
}

var (
	_ pkgif.Session = (*PipeSession)(nil)
	_ Conn          = (*PipeSession)(nil)
)

// PipeOption Pipe 选项
type PipeOption func(*pipeOptions)

type pipeOptions struct {
	deferReady bool
}

// WithDeferredReady 两端创建后保持未就绪，直到调用 MarkReady
func WithDeferredReady() PipeOption {
	return func(o *pipeOptions) { o.deferReady = true }
}

// Pipe 创建相连的内核端与前端会话
func Pipe(key types.SessionKey, opts ...PipeOption) (kernel, frontend *PipeSession) {
	var o pipeOptions
	for _, opt := range opts {
		opt(&o)
	}
	kernel = &PipeSession{Hub: NewHub(key), name: "kernel"}
	frontend = &PipeSession{Hub: NewHub(key), name: "frontend"}
	kernel.peer = frontend
	frontend.peer = kernel
	if !o.deferReady {
		kernel.Hub.MarkReady()
		frontend.Hub.MarkReady()
	}
	return kernel, frontend
}

// Name 端名（kernel / frontend）
func (s *PipeSession) Name() string { return s.name }

// Peer 对端
func (s *PipeSession) Peer() *PipeSession { return s.peer }

// MarkReady 同时打开两端的就绪门
func (s *PipeSession) MarkReady() {
	s.Hub.MarkReady()
	s.peer.Hub.MarkReady()
}

// Rekey 两端同时变更会话标识（模拟内核迁移）
func (s *PipeSession) Rekey(key types.SessionKey) {
	s.Hub.SetKey(key)
	s.peer.Hub.SetKey(key)
}

// OpenChannel 本端打开通道，对端按目标分发
func (s *PipeSession) OpenChannel(ctx context.Context, target string, id types.ModelID, msg *pkgif.Message) (pkgif.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id.IsEmpty() {
		id = types.NewModelID()
	}
	c, err := s.NewComm(id, target, s)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		msg = &pkgif.Message{}
	}
	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	s.peer.DispatchOpen(s.peer, target, id, CloneMessage(msg))
	return c, nil
}

// SendComm 实现 Conn
func (s *PipeSession) SendComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.peer.Closed() {
		return ErrSessionClosed
	}
	s.peer.DispatchMessage(id, CloneMessage(msg))
	return nil
}

// CloseComm 实现 Conn
func (s *PipeSession) CloseComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error {
	if s.peer.Closed() {
		return nil
	}
	s.peer.DispatchClose(id, CloneMessage(msg))
	return nil
}

// Close 关闭本端及其全部通道（对端收到关闭）
func (s *PipeSession) Close() error {
	return s.Shutdown(context.Background(), true)
}
