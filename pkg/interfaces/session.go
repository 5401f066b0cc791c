package interfaces

import (
	"context"

	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// Message 通道上的一条逻辑消息
//
// Data 是 JSON 安全的内容；二进制缓冲区放在 Buffers 中旁路传输。
type Message struct {
	ID       types.MessageID
	ParentID types.MessageID
	Data     statetree.Mapping
	Metadata map[string]any
	Buffers  []statetree.Buffer
}

// MessageFunc 消息回调
type MessageFunc func(msg *Message)

// Channel 模型作用域的双向通道（Jupyter comm）
type Channel interface {
	// ID 通道标识（即模型 ID）
	ID() types.ModelID

	// Target 通道目标名，如 "jupyter.widget"
	Target() string

	// Send 发送消息；返回时消息已交给传输层
	Send(ctx context.Context, msg *Message) error

	// OnMessage 注册入站消息回调（按到达顺序串行调用）
	OnMessage(fn MessageFunc) Handle

	// OnClose 注册关闭回调；本端或远端关闭都会触发一次
	OnClose(fn MessageFunc) Handle

	// Close 关闭通道，data 可为 nil
	Close(ctx context.Context, data *Message) error

	// Closed 是否已关闭
	Closed() bool
}

// OpenHandler 远端打开通道时的回调
type OpenHandler func(ch Channel, msg *Message)

// KeyChangeFunc 会话身份变更回调
type KeyChangeFunc func(old, new types.SessionKey)

// Session 会话/内核层协作者
//
// 提供通道开关与收发原语、“会话就绪”异步门以及身份变更通知。
type Session interface {
	// Key 当前会话标识
	Key() types.SessionKey

	// Ready 等待会话就绪
	Ready(ctx context.Context) error

	// OpenChannel 本端发起打开通道
	OpenChannel(ctx context.Context, target string, id types.ModelID, msg *Message) (Channel, error)

	// RegisterTarget 注册远端打开通道时的处理器
	RegisterTarget(target string, h OpenHandler) (Handle, error)

	// OnKeyChange 注册身份变更通知
	OnKeyChange(fn KeyChangeFunc) Handle

	// Close 关闭会话与其上全部通道
	Close() error
}
