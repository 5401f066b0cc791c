package ws

import "errors"

var (
	// ErrBadFrame 二进制帧格式错误
	ErrBadFrame = errors.New("ws: malformed binary frame")

	// ErrBadEnvelope 消息信封无法解析
	ErrBadEnvelope = errors.New("ws: malformed kernel message")
)
