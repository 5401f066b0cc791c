// Package storage 提供保存状态的持久化存储
//
// # 架构
//
//	storage/
//	├── engine/          # 存储引擎接口
//	│   └── badger/      # BadgerDB 实现
//	├── kv/              # 前缀隔离的 KV 层
//	└── snapshot/        # 会话快照（manager.SnapshotStore）
//
// 只有在配置启用 save_state 时才会打开数据库；否则模块不提供快照存储，
// 管理器销毁时也不会写入快照。
//
// 数据位于 ${DataDir}/widgetsync.db。
package storage

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/storage")
