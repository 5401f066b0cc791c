package interfaces

import (
	"context"

	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// Class 已解析的 widget 类
type Class struct {
	// Descriptor 解析到的描述符（Version 为实际版本）
	Descriptor types.ClassDescriptor

	// Defaults 类的默认状态，构造模型时与收到的状态合并
	Defaults statetree.Mapping

	// View 默认视图类名
	View string
}

// Exports 模块导出：类名 → 类
type Exports map[string]*Class

// ExportsThunk 延迟加载整个导出集合
type ExportsThunk func(ctx context.Context) (Exports, error)

// Extension 扩展贡献的注册项
//
// Exports 与 Thunk 二选一；Thunk 只求值一次。
type Extension struct {
	Name    string
	Version string
	Exports Exports
	Thunk   ExportsThunk
}

// ClassResolver 把描述符解析为具体类
type ClassResolver interface {
	Resolve(ctx context.Context, desc types.ClassDescriptor) (*Class, error)
}
