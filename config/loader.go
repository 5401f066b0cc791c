package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultURLTemplate 默认模块服务 URL 模板
const DefaultURLTemplate = "https://unpkg.com/{package}@{version}/dist/widgets.json"

// LoaderConfig 动态类加载配置
type LoaderConfig struct {
	// URLTemplate 模块清单 URL 模板，{package} 与 {version} 会被替换
	// 为空表示禁用远程加载
	URLTemplate string `json:"url_template"`

	// FetchTimeout 单次远程获取的上限（与调用方的 ctx 无关）
	// 默认值: 30s
	FetchTimeout Duration `json:"fetch_timeout"`

	// CacheSize 已加载模块的 LRU 缓存容量
	// 默认值: 128
	CacheSize int `json:"cache_size"`

	// MaxModuleBytes 模块清单的最大字节数
	// 默认值: 4 MiB
	MaxModuleBytes int64 `json:"max_module_bytes"`
}

// DefaultLoaderConfig 返回默认加载配置
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		URLTemplate:    DefaultURLTemplate,
		FetchTimeout:   Duration(30 * time.Second),
		CacheSize:      128,
		MaxModuleBytes: 4 << 20,
	}
}

// Validate 验证加载配置
func (c *LoaderConfig) Validate() error {
	if c.URLTemplate != "" && !strings.Contains(c.URLTemplate, "{package}") {
		return fmt.Errorf("loader: url_template must contain {package}")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("loader: fetch_timeout must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("loader: cache_size must be positive")
	}
	if c.MaxModuleBytes <= 0 {
		return fmt.Errorf("loader: max_module_bytes must be positive")
	}
	return nil
}

// RemoteEnabled 是否启用远程加载
func (c *LoaderConfig) RemoteEnabled() bool {
	return c.URLTemplate != ""
}
