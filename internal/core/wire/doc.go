// Package wire 实现 widget 协议 2.x 的状态信封
//
// 同步消息的数据部分形如：
//
//	{"method": "update", "state": {...}, "buffer_paths": [["b","data"],["c",1]]}
//
// 二进制缓冲区通过 statetree.Extract 从状态中摘出，放在 Message.Buffers
// 中旁路传输，buffer_paths 的第 i 项对应第 i 个缓冲区。接收端解析后
// 用 statetree.Inject 放回。
//
// 打开通道（comm_open）的数据为 {"state": ..., "buffer_paths": ...}，
// 元数据携带协议版本 {"version": "2.1.0"}；模型类由状态中的
// _model_module / _model_module_version / _model_name 三个键给出。
package wire

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/wire")
