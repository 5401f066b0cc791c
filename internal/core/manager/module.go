package manager

import (
	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"go.uber.org/fx"
)

// Params 管理器依赖
type Params struct {
	fx.In

	Config    *config.Config      `optional:"true"`
	Resolver  pkgif.ClassResolver
	EventBus  pkgif.EventBus      `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
	Snapshots SnapshotStore       `optional:"true"`
}

// Module 返回管理器 Fx 模块
//
// 提供构造每个会话管理器所需的 Deps；管理器本身由注册表按需创建。
func Module() fx.Option {
	return fx.Module("manager",
		fx.Provide(ProvideDeps),
	)
}

// ProvideDeps 汇集管理器依赖
func ProvideDeps(p Params) Deps {
	cfg := config.NewConfig()
	if p.Config != nil {
		cfg = p.Config
	}
	deps := Deps{
		Resolver: p.Resolver,
		Channel:  cfg.Channel,
		EventBus: p.EventBus,
		Metrics:  p.Metrics,
	}
	if cfg.Storage.SaveState {
		deps.Snapshots = p.Snapshots
		deps.SaveOnDispose = p.Snapshots != nil
	}
	return deps
}
