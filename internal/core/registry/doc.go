// Package registry 实现会话管理器注册表（ManagerRegistry）
//
// 每个会话标识最多对应一个管理器。记录的生命周期：
//
//	Absent → Constructing → Active → Disposed
//
// 并发 Acquire 同一个不存在的标识只调用一次工厂，其余调用方等待同一个
// 构造结果。工厂失败时记录回到 Absent，所有等待方收到包装后的错误。
// 消费者集合变空时销毁管理器；构造期间变空则取消构造，之后产出的
// 管理器会被立即销毁。
//
// Rekey 把活跃记录原子地迁移到新标识，旧标识留下墓碑：之后对旧标识的
// Acquire/Release 返回 ErrNotFound。墓碑随迁移后的记录一起清除。
package registry

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/registry")
