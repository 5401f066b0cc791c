package model

import "errors"

var (
	// ErrClosed 模型已关闭
	ErrClosed = errors.New("model: closed")

	// ErrNotConnected 模型没有连接的通道
	ErrNotConnected = errors.New("model: not connected")

	// ErrAlreadyAttached 模型已绑定通道
	ErrAlreadyAttached = errors.New("model: channel already attached")
)
