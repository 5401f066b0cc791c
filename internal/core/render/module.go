package render

import (
	"context"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"go.uber.org/fx"
)

// Params 绑定器依赖
type Params struct {
	fx.In

	Host     pkgif.RenderHost `optional:"true"`
	EventBus pkgif.EventBus   `optional:"true"`
}

// Module 返回渲染绑定 Fx 模块
func Module() fx.Option {
	return fx.Module("render",
		fx.Provide(ProvideBinder),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideBinder 创建绑定器
func ProvideBinder(p Params) (*Binder, error) {
	return NewBinder(p.Host, p.EventBus)
}

func registerLifecycle(lc fx.Lifecycle, b *Binder) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
}
