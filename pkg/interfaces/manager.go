package interfaces

import (
	"context"

	"github.com/dep2p/go-widgetsync/pkg/types"
)

// Manager 单个会话的同步权威
//
// 拥有该会话的所有模型与通道，由多个消费者共享。
type Manager interface {
	// Key 当前会话标识
	Key() types.SessionKey

	// Rekey 会话迁移身份后更新标识
	Rekey(key types.SessionKey)

	// Flush 等待所有待发送的状态同步完成
	Flush(ctx context.Context) error

	// Dispose 刷新待同步状态、关闭自有通道并注销；幂等
	Dispose(ctx context.Context) error
}

// ManagerFactory 构造会话管理器
type ManagerFactory func(ctx context.Context, key types.SessionKey) (Manager, error)

// ManagerRegistry 会话 → 共享管理器的注册表
type ManagerRegistry interface {
	// Acquire 获取（必要时构造）会话的管理器并登记消费者
	Acquire(ctx context.Context, key types.SessionKey, consumer types.ConsumerID, factory ManagerFactory) (Manager, error)

	// Release 移除消费者；消费者集合为空时销毁管理器
	Release(ctx context.Context, key types.SessionKey, consumer types.ConsumerID) error

	// Rekey 原子地把活跃记录迁移到新标识
	Rekey(old, new types.SessionKey) error
}
