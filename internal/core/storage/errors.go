package storage

import (
	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
)

// 存储错误（引擎错误的别名）
var (
	ErrNotFound      = engine.ErrNotFound
	ErrClosed        = engine.ErrClosed
	ErrInvalidConfig = engine.ErrInvalidConfig

	// ErrNoSnapshot 会话没有保存的快照
	ErrNoSnapshot = manager.ErrNoSnapshot
)
