package metrics

import (
	"github.com/dep2p/go-widgetsync/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params 指标模块依赖
type Params struct {
	fx.In

	Config     *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回指标 Fx 模块
//
// 提供 *Metrics；配置禁用时提供 nil（记录方法 nil 安全）。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
	)
}

// ProvideMetrics 根据配置创建指标
func ProvideMetrics(p Params) (*Metrics, error) {
	cfg := config.DefaultMetricsConfig()
	if p.Config != nil {
		cfg = p.Config.Metrics
	}
	if !cfg.Enable {
		logger.Debug("指标已禁用")
		return nil, nil
	}
	reg := p.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return New(cfg.Namespace, reg)
}
