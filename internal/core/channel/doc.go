// Package channel 实现会话与通道（Jupyter comm）
//
// Hub 管理一个会话上的目标注册、通道表、就绪门与身份变更通知，
// 所有入站事件（打开、消息、关闭、身份变更）都在同一个串行队列上
// 按到达顺序分发。具体传输只需实现 Conn：
//
//   - Pipe: 进程内的内核/前端会话对，用于测试、示例与演示
//   - ws 子包: 基于 gorilla/websocket 的 Jupyter 内核 websocket 会话
//
// 通道在注册第一个消息回调之前收到的消息会被暂存，注册时按原顺序补发，
// 因此异步构造模型期间到达的更新不会丢失。
package channel

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/channel")
