package registry

import "errors"

// ============================================================================
//                              查找错误
// ============================================================================

var (
	// ErrNotFound 标识没有记录（或已被迁移）
	ErrNotFound = errors.New("registry: session not found")

	// ErrUnknownConsumer 消费者未登记在该会话上
	ErrUnknownConsumer = errors.New("registry: consumer not registered")
)

// ============================================================================
//                              生命周期错误
// ============================================================================

var (
	// ErrDisposed 管理器在调用方拿到之前已被销毁
	ErrDisposed = errors.New("registry: manager disposed")

	// ErrNotActive 记录仍在构造中
	ErrNotActive = errors.New("registry: session not active")

	// ErrKeyInUse 目标标识已有活跃记录
	ErrKeyInUse = errors.New("registry: session key in use")

	// ErrClosed 注册表已关闭
	ErrClosed = errors.New("registry: closed")

	// ErrNilFactory 未提供工厂
	ErrNilFactory = errors.New("registry: nil manager factory")
)
