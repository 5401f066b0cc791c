package config

import (
	"fmt"

	"github.com/dep2p/go-widgetsync/pkg/lib/log"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别表达式，如 "info" 或 "loader=debug,registry=warn,info"
	// 默认值: "info"
	Level string `json:"level"`

	// Format 输出格式：text | json
	// 默认值: "text"
	Format string `json:"format"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	if err := log.CheckConfig(c.Level, c.Format); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// HandlerConfig 转换为日志处理器配置
func (c *LogConfig) HandlerConfig() log.HandlerConfig {
	return log.ParseConfig(c.Level, c.Format)
}
