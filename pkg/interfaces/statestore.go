package interfaces

import (
	"context"

	"github.com/dep2p/go-widgetsync/pkg/lib/future"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// StateChangeFunc 状态变更回调，changed 为本次实际改变的键
type StateChangeFunc func(store StateStore, changed statetree.Mapping)

// ConnectedChangeFunc 连接状态变更回调
type ConnectedChangeFunc func(store StateStore, connected bool)

// CustomMessageFunc 自定义消息回调
type CustomMessageFunc func(store StateStore, content statetree.Mapping, buffers []statetree.Buffer)

// SetOptions set 的投递元数据
type SetOptions struct {
	// Channel 目标通道；为空时使用模型自身的通道
	Channel Channel

	// SuppressEcho 跟踪本次发送，远端回声到达时不再重复应用
	SuppressEcho bool

	// NoSync 只更新本地状态，不发送
	NoSync bool

	// Origin 变更来源；非本地来源不会回传
	Origin types.Origin
}

// StateStore 同步模型契约
//
// 每个同步模型无论底层传输如何都统一暴露此接口。
type StateStore interface {
	// ID 模型标识
	ID() types.ModelID

	// Get 返回当前值；无副作用，不挂起
	Get(key string) (statetree.Value, bool)

	// State 返回当前状态的快照
	State() statetree.Mapping

	// Set 合并 partial 到当前状态
	//
	// 返回的 Future 在变更交给通道后完成（断开时立即完成），
	// 不会早于缓冲区序列化完成；序列化失败时以错误完成且不重试。
	Set(partial statetree.Mapping, opts SetOptions) *future.Future[struct{}]

	// Connected 通道是否连接
	Connected() bool

	// OnStateChange 注册状态变更监听；本地与远端来源的变更都会通知，
	// 同一模型的通知顺序与 set 的应用顺序一致
	OnStateChange(fn StateChangeFunc) Handle

	// OnConnectedChange 注册连接状态监听；只在状态翻转时通知
	OnConnectedChange(fn ConnectedChangeFunc) Handle

	// OnCustomMessage 注册自定义消息监听
	OnCustomMessage(fn CustomMessageFunc) Handle

	// Send 在通道上发送自定义（非状态）消息
	//
	// 与同一通道上的状态同步流量之间不保证顺序。
	Send(ctx context.Context, content statetree.Mapping, buffers []statetree.Buffer) error
}
