package registry

import (
	"context"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"go.uber.org/fx"
)

// Params 注册表依赖
type Params struct {
	fx.In

	Config   *config.Config   `optional:"true"`
	EventBus pkgif.EventBus   `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

// Result 注册表导出
type Result struct {
	fx.Out

	Registry        *Registry
	ManagerRegistry pkgif.ManagerRegistry
}

// Module 返回注册表 Fx 模块
//
// 停止时销毁所有管理器。
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 创建注册表
func ProvideRegistry(p Params) (Result, error) {
	cfg := config.DefaultRegistryConfig()
	if p.Config != nil {
		cfg = p.Config.Registry
	}
	r, err := New(cfg, WithEventBus(p.EventBus), WithMetrics(p.Metrics))
	if err != nil {
		return Result{}, err
	}
	return Result{Registry: r, ManagerRegistry: r}, nil
}

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Close(ctx)
		},
	})
}
