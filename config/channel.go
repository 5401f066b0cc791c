package config

import (
	"fmt"
	"time"
)

// ChannelConfig 会话通道配置
type ChannelConfig struct {
	// TargetName widget comm 目标名
	// 默认值: "jupyter.widget"
	TargetName string `json:"target_name"`

	// ProtocolVersion widget 消息协议版本（写入 comm_open 元数据）
	// 默认值: "2.1.0"
	ProtocolVersion string `json:"protocol_version"`

	// SuppressEcho 本地 set 默认跟踪回声
	// 默认值: true
	SuppressEcho bool `json:"suppress_echo"`

	// WriteTimeout websocket 单帧写超时
	// 默认值: 10s
	WriteTimeout Duration `json:"write_timeout"`

	// PingInterval websocket 心跳间隔，0 表示禁用
	// 默认值: 30s
	PingInterval Duration `json:"ping_interval"`

	// MaxMessageBytes 单条入站消息最大字节数
	// 默认值: 64 MiB
	MaxMessageBytes int64 `json:"max_message_bytes"`
}

// DefaultChannelConfig 返回默认通道配置
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		TargetName:      "jupyter.widget",
		ProtocolVersion: "2.1.0",
		SuppressEcho:    true,
		WriteTimeout:    Duration(10 * time.Second),
		PingInterval:    Duration(30 * time.Second),
		MaxMessageBytes: 64 << 20,
	}
}

// Validate 验证通道配置
func (c *ChannelConfig) Validate() error {
	if c.TargetName == "" {
		return fmt.Errorf("channel: target_name cannot be empty")
	}
	if c.ProtocolVersion == "" {
		return fmt.Errorf("channel: protocol_version cannot be empty")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("channel: write_timeout must be positive")
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("channel: ping_interval cannot be negative")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("channel: max_message_bytes must be positive")
	}
	return nil
}
