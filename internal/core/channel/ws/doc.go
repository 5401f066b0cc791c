// Package ws 实现基于 websocket 的 Jupyter 内核会话
//
// 每条内核消息是一个 JSON 信封：
//
//	{"header": {...}, "parent_header": {...}, "metadata": {...},
//	 "content": {...}, "channel": "shell"}
//
// 不带缓冲区时以文本帧发送；带缓冲区时使用二进制分帧：
//
//	uint32 n                 段数（JSON + 缓冲区），大端
//	uint32 offsets[n]        每段的起始偏移
//	JSON 信封 | 缓冲区 1 | ... | 缓冲区 n-1
//
// 会话只处理 comm_open / comm_msg / comm_close，其他消息类型被忽略。
package ws

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/channel/ws")
