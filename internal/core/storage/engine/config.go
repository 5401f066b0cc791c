package engine

import (
	"fmt"
	"os"
	"time"
)

// Config 引擎配置
type Config struct {
	// Path 数据目录（必需）
	Path string

	// SyncWrites 每次写入同步到磁盘
	SyncWrites bool

	// ReadOnly 只读打开
	ReadOnly bool

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64

	// MemTableSize 内存表大小（字节）
	MemTableSize int64

	// GCInterval 值日志 GC 间隔；0 关闭
	GCInterval time.Duration

	// GCDiscardRatio 值日志 GC 丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
//
// 保存状态的数据量很小，缓存比 badger 默认值小得多。
func DefaultConfig(path string) *Config {
	return &Config{
		Path:           path,
		BlockCacheSize: 16 << 20,
		MemTableSize:   8 << 20,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if c.BlockCacheSize < 0 || c.MemTableSize < 0 {
		return fmt.Errorf("%w: negative cache size", ErrInvalidConfig)
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("%w: negative gc interval", ErrInvalidConfig)
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("%w: gc discard ratio must be in (0,1)", ErrInvalidConfig)
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.ReadOnly {
		return nil
	}
	return os.MkdirAll(c.Path, 0o755)
}
