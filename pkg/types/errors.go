package types

import "errors"

// ============================================================================
//                              ID 相关错误
// ============================================================================

var (
	// ErrEmptySessionKey 空会话标识
	ErrEmptySessionKey = errors.New("empty session key")

	// ErrEmptyConsumerID 空消费者标识
	ErrEmptyConsumerID = errors.New("empty consumer ID")
)

// ============================================================================
//                              描述符错误
// ============================================================================

var (
	// ErrInvalidDescriptor 无效的类描述符
	ErrInvalidDescriptor = errors.New("invalid class descriptor")
)
