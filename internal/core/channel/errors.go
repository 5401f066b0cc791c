package channel

import "errors"

// ============================================================================
//                              会话错误
// ============================================================================

var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("channel: session closed")

	// ErrTargetRegistered 目标已注册
	ErrTargetRegistered = errors.New("channel: target already registered")

	// ErrEmptyTarget 目标名为空
	ErrEmptyTarget = errors.New("channel: empty target name")
)

// ============================================================================
//                              通道错误
// ============================================================================

var (
	// ErrChannelClosed 通道已关闭
	ErrChannelClosed = errors.New("channel: channel closed")

	// ErrCommExists 通道 ID 已被占用
	ErrCommExists = errors.New("channel: comm id already in use")

	// ErrMessageTooLarge 消息超过上限
	ErrMessageTooLarge = errors.New("channel: message too large")
)
