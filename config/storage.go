package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 保存的 widget 状态存储配置
//
// 数据目录结构：
//
//	${DataDir}/
//	└── widgetsync.db/      # BadgerDB 数据库
type StorageConfig struct {
	// SaveState 是否把会话的 widget 状态持久化
	// 默认值: false
	SaveState bool `json:"save_state"`

	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// SyncWrites 每次写入同步到磁盘
	// 默认值: false
	SyncWrites bool `json:"sync_writes"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir: "./data",
	}
}

// Validate 验证存储配置
func (c *StorageConfig) Validate() error {
	if c.SaveState && c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty when save_state is enabled")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "widgetsync.db")
}
