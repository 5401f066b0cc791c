// Package interfaces 定义 widgetsync 的公共接口
//
// 采用扁平命名，一个接口文件对应一个实现目录或一个外部协作者：
//
// # 核心接口
//
//   - statestore.go - StateStore 同步模型契约（internal/core/model）
//   - manager.go    - Manager / ManagerRegistry（internal/core/manager, registry）
//   - loader.go     - ClassResolver 动态类加载（internal/core/loader）
//   - eventbus.go   - 事件总线（internal/core/eventbus）
//
// # 外部协作者
//
//   - session.go    - 会话/内核层：通道开关、收发、就绪门、身份变更通知
//   - render.go     - 渲染宿主：attach 与视图移除通知
//
// 协作者只由本库调用，不在本库中实现（测试替身见 tests/mocks，
// 内存与 websocket 实现见 internal/core/channel）。
//
// # 注册句柄
//
// 所有监听器注册都返回 Handle，调用 Close 即注销，
// 不需要重新构造原始的 (callback, context) 对。
package interfaces
