package types

import (
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
//                              SessionKey - 会话标识
// ============================================================================

// SessionKey 后端会话标识（如运行中内核的 ID）
//
// 与消费者（文档）身份无关；会话迁移身份时通过 Rekey 重新定位。
type SessionKey string

// String 返回字符串形式
func (k SessionKey) String() string { return string(k) }

// ShortString 返回日志用的短形式
func (k SessionKey) ShortString() string { return shortString(string(k)) }

// IsEmpty 是否为空
func (k SessionKey) IsEmpty() bool { return k == "" }

// ParseSessionKey 解析会话标识
func ParseSessionKey(s string) (SessionKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySessionKey
	}
	return SessionKey(s), nil
}

// ============================================================================
//                              ConsumerID - 消费者标识
// ============================================================================

// ConsumerID 共享同一管理器的消费者标识
type ConsumerID string

// NewConsumerID 生成随机消费者标识
func NewConsumerID() ConsumerID { return ConsumerID(newHexID()) }

// String 返回字符串形式
func (c ConsumerID) String() string { return string(c) }

// IsEmpty 是否为空
func (c ConsumerID) IsEmpty() bool { return c == "" }

// ============================================================================
//                              ModelID / MessageID / ViewID
// ============================================================================

// ModelID 模型标识，同时是该模型通道的 comm ID
type ModelID string

// NewModelID 生成随机模型标识（32 位十六进制，与 Jupyter comm ID 相同格式）
func NewModelID() ModelID { return ModelID(newHexID()) }

// String 返回字符串形式
func (id ModelID) String() string { return string(id) }

// ShortString 返回日志用的短形式
func (id ModelID) ShortString() string { return shortString(string(id)) }

// IsEmpty 是否为空
func (id ModelID) IsEmpty() bool { return id == "" }

// MessageID 消息标识
type MessageID string

// NewMessageID 生成随机消息标识
func NewMessageID() MessageID { return MessageID(uuid.NewString()) }

// String 返回字符串形式
func (id MessageID) String() string { return string(id) }

// ViewID 视图标识
type ViewID string

// NewViewID 生成随机视图标识
func NewViewID() ViewID { return ViewID(newHexID()) }

// String 返回字符串形式
func (id ViewID) String() string { return string(id) }

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func shortString(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
