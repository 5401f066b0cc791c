// Package types 定义 widgetsync 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 widgetsync 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
// 基础类型:
//   - ids.go        - SessionKey, ConsumerID, ModelID, MessageID, ViewID
//   - descriptor.go - ClassDescriptor, RemoteDescriptor
//   - enums.go      - RecordState, Origin
//   - errors.go     - 公共错误定义
//
// 业务类型:
//   - view.go       - View
//
// 事件类型:
//   - events.go     - 管理器生命周期与模型事件
//
// # ID 类型
//
//   - SessionKey - 后端会话（内核）标识，不透明字符串
//   - ConsumerID - 使用同一会话的消费者（文档）标识
//   - ModelID    - 模型标识，同时作为通道（comm）ID
//   - MessageID  - 消息标识，用于回声匹配
//   - ViewID     - 视图标识
package types
