package wire

import "errors"

// ============================================================================
//                              解码错误
// ============================================================================

var (
	// ErrUnknownMethod 未知的消息方法
	ErrUnknownMethod = errors.New("wire: unknown method")

	// ErrMalformed 消息结构不合法
	ErrMalformed = errors.New("wire: malformed message")
)

// ============================================================================
//                              类描述错误
// ============================================================================

var (
	// ErrMissingClass 状态中缺少模型类字段
	ErrMissingClass = errors.New("wire: state does not name a model class")
)
