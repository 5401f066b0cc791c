// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制，承载管理器生命周期事件
// （types.EvtManagerCreated / EvtManagerDisposed / EvtSessionRekeyed）
// 以及模型事件。
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtManagerDisposed))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(types.EvtManagerDisposed))
//	defer em.Close()
//	em.Emit(types.EvtManagerDisposed{Key: key})
//
// 回调形式（后台 goroutine 串行调用）：
//
//	h, _ := eventbus.On(bus, func(e types.EvtSessionRekeyed) { ... })
//	defer h.Close()
//
// # 并发安全
//
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射器引用计数：atomic.Int32
//   - 慢消费者：缓冲区满时丢弃并周期性告警
package eventbus

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/eventbus")
