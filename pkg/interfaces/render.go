package interfaces

import (
	"context"

	"github.com/dep2p/go-widgetsync/pkg/types"
)

// ViewRemovedFunc 视图移除回调
type ViewRemovedFunc func(view types.View)

// RenderHost 渲染宿主协作者
//
// 本库只调用它，不实现任何 DOM 机制。
type RenderHost interface {
	// Attach 把视图挂载到宿主提供的挂载点
	Attach(ctx context.Context, view types.View, mount string) error

	// OnViewRemoved 注册视图移除通知
	OnViewRemoved(fn ViewRemovedFunc) Handle
}
