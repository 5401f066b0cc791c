package loader

import (
	"net/http"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"go.uber.org/fx"
)

// Params 加载器依赖
type Params struct {
	fx.In

	Config     *config.Config    `optional:"true"`
	Metrics    *metrics.Metrics  `optional:"true"`
	HTTPClient *http.Client      `optional:"true"`
	Extensions []pkgif.Extension `group:"extensions"`
}

// Result 加载器导出
type Result struct {
	fx.Out

	Loader   *Loader
	Resolver pkgif.ClassResolver
}

// Module 返回加载器 Fx 模块
//
// 通过 group:"extensions" 提供的扩展在构造时注册。
func Module() fx.Option {
	return fx.Module("loader",
		fx.Provide(ProvideLoader),
	)
}

// ProvideLoader 创建加载器并注册扩展
func ProvideLoader(p Params) (Result, error) {
	cfg := config.DefaultLoaderConfig()
	if p.Config != nil {
		cfg = p.Config.Loader
	}
	opts := []Option{WithMetrics(p.Metrics)}
	if p.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(p.HTTPClient))
	}
	l, err := New(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	for _, ext := range p.Extensions {
		if err := l.Register(ext); err != nil {
			return Result{}, err
		}
	}
	return Result{Loader: l, Resolver: l}, nil
}
