// Package manager 实现单个会话的同步权威
//
// Manager 在会话上注册 comm 目标（默认 "jupyter.widget"）。远端打开通道时：
//
//  1. 从打开消息中解码状态并注入缓冲区
//  2. 读取 _model_module / _model_module_version / _model_name 得到类描述符
//  3. 通过 ClassResolver 解析类，把类默认值与收到的状态合并后构造模型
//  4. 模型绑定通道，之后的 update / echo_update / request_state / custom
//     由模型自己处理
//
// 解析与构造在会话的分发队列之外进行；通道会缓存构造期间到达的消息。
//
// 保存状态使用 application/vnd.jupyter.widget-state+json 格式
// （version_major 2，version_minor 0，缓冲区 base64 编码并带路径）。
package manager

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/manager")
