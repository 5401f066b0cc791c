// Package render 把模型视图绑定到宿主提供的挂载点
//
// 本包只记录绑定并调用 RenderHost.Attach，不包含任何 DOM 机制。
// 绑定按会话标识分组：管理器销毁时该会话的全部绑定失效，
// 会话迁移时绑定随之迁移，宿主移除视图时对应绑定被丢弃。
package render

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/render")
