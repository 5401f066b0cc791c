package storage

import (
	"time"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
)

// Config 存储模块配置
type Config struct {
	// Enabled 是否打开数据库
	Enabled bool

	// Path 数据库目录
	Path string

	// SyncWrites 每次写入同步到磁盘
	SyncWrites bool

	// GCInterval 值日志 GC 间隔；0 关闭
	GCInterval time.Duration
}

// DefaultConfig 返回默认配置（不启用）
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute}
}

// ConfigFromUnified 从统一配置创建存储配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Enabled = cfg.Storage.SaveState
	c.Path = cfg.Storage.DBPath()
	c.SyncWrites = cfg.Storage.SyncWrites
	return c
}

// ToEngineConfig 转换为引擎配置
func (c Config) ToEngineConfig() *engine.Config {
	ec := engine.DefaultConfig(c.Path)
	ec.SyncWrites = c.SyncWrites
	ec.GCInterval = c.GCInterval
	return ec
}

// Validate 验证配置
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.ToEngineConfig().Validate()
}
