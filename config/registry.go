package config

import (
	"fmt"
	"time"
)

// RegistryConfig 会话管理器注册表配置
type RegistryConfig struct {
	// ConstructTimeout 单次管理器构造（含等待会话就绪）的上限
	// 默认值: 30s
	ConstructTimeout Duration `json:"construct_timeout"`

	// DisposeTimeout 销毁时刷新待同步状态、关闭通道的上限
	// 默认值: 10s
	DisposeTimeout Duration `json:"dispose_timeout"`
}

// DefaultRegistryConfig 返回默认注册表配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ConstructTimeout: Duration(30 * time.Second),
		DisposeTimeout:   Duration(10 * time.Second),
	}
}

// Validate 验证注册表配置
func (c *RegistryConfig) Validate() error {
	if c.ConstructTimeout <= 0 {
		return fmt.Errorf("registry: construct_timeout must be positive")
	}
	if c.DisposeTimeout <= 0 {
		return fmt.Errorf("registry: dispose_timeout must be positive")
	}
	return nil
}
