// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带 DefaultXConfig() 与 Validate()
//   - 支持从 JSON 加载和保存配置
//   - 支持环境变量覆盖（WIDGETSYNC_ 前缀）
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Loader.CacheSize = 256
//
//	cfg, err := config.LoadFile("widgetsync.json")
//	if err := cfg.ApplyEnv(os.LookupEnv); err != nil { ... }
package config

import "errors"

// ErrNilConfig 配置为空
var ErrNilConfig = errors.New("config is nil")

// Config widgetsync 的完整配置
//
// 配置按照功能模块组织：
//   - Registry: 会话管理器注册表（构造/销毁超时）
//   - Loader: 动态类加载（URL 模板、缓存、超时）
//   - Channel: 会话通道（comm 目标、协议版本、websocket 参数）
//   - Storage: 保存的 widget 状态
//   - Metrics: Prometheus 指标
//   - Log: 日志
type Config struct {
	Registry RegistryConfig `json:"registry"`
	Loader   LoaderConfig   `json:"loader"`
	Channel  ChannelConfig  `json:"channel"`
	Storage  StorageConfig  `json:"storage"`
	Metrics  MetricsConfig  `json:"metrics"`
	Log      LogConfig      `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Registry: DefaultRegistryConfig(),
		Loader:   DefaultLoaderConfig(),
		Channel:  DefaultChannelConfig(),
		Storage:  DefaultStorageConfig(),
		Metrics:  DefaultMetricsConfig(),
		Log:      DefaultLogConfig(),
	}
}

// Validate 验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Loader.Validate(); err != nil {
		return err
	}
	if err := c.Channel.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Clone 复制配置（子配置均为值类型）
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cloned := *c
	return &cloned
}
