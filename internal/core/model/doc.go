// Package model 实现同步模型（StateStore）
//
// 每个 Model 持有一份规范状态映射。Set 合并部分状态后：
//
//  1. 在串行的通知队列上按应用顺序调用状态监听者；
//     监听者内部再次 Set 会排到队尾，不会打乱顺序
//  2. 若已连接、未指定 NoSync 且来源为本地，先经 wire.EncodeUpdate
//     摘出缓冲区，再在出站队列上按 FIFO 发送；返回的 Future 在通道接收后完成
//
// 回声抑制：本地发送的键记录其消息 ID，直到对应 echo_update 返回。
// 回声到达时，有待确认记录的键一律不应用（ID 匹配时清除记录）；
// 普通 update 总是全部应用。
//
// 自定义消息（Send）直接写通道，与状态同步之间不保证顺序。
package model

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/model")
