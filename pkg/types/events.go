package types

import "time"

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 基础事件接口
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType string
	Time      time.Time
}

// Type 返回事件类型
func (e BaseEvent) Type() string { return e.EventType }

// Timestamp 返回事件时间戳
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{EventType: eventType, Time: time.Now()}
}

// 事件类型名
const (
	EventManagerCreated  = "manager.created"
	EventManagerDisposed = "manager.disposed"
	EventSessionRekeyed  = "session.rekeyed"
	EventModelCreated    = "model.created"
	EventModelClosed     = "model.closed"
)

// ============================================================================
//                              管理器事件
// ============================================================================

// EvtManagerCreated 会话的管理器构造完成
type EvtManagerCreated struct {
	BaseEvent
	Key SessionKey
}

// DisposeReason 销毁原因
type DisposeReason string

const (
	// DisposeReleased 最后一个消费者释放
	DisposeReleased DisposeReason = "released"
	// DisposeEvicted 会话结束，强制驱逐
	DisposeEvicted DisposeReason = "evicted"
	// DisposeCancelled 构造期间被取消
	DisposeCancelled DisposeReason = "cancelled"
	// DisposeShutdown 注册表关闭
	DisposeShutdown DisposeReason = "shutdown"
)

// EvtManagerDisposed 管理器已销毁；引用它的渲染绑定应失效
type EvtManagerDisposed struct {
	BaseEvent
	Key    SessionKey
	Reason DisposeReason
}

// EvtSessionRekeyed 会话记录迁移到新标识
type EvtSessionRekeyed struct {
	BaseEvent
	Old SessionKey
	New SessionKey
}

// ============================================================================
//                              模型事件
// ============================================================================

// EvtModelCreated 管理器中新增模型
type EvtModelCreated struct {
	BaseEvent
	Key   SessionKey
	Model ModelID
	Class ClassDescriptor
}

// EvtModelClosed 模型关闭（通道关闭或管理器销毁）
type EvtModelClosed struct {
	BaseEvent
	Key   SessionKey
	Model ModelID
}
