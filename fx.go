package widgetsync

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/eventbus"
	"github.com/dep2p/go-widgetsync/internal/core/loader"
	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	"github.com/dep2p/go-widgetsync/internal/core/registry"
	"github.com/dep2p/go-widgetsync/internal/core/render"
	"github.com/dep2p/go-widgetsync/internal/core/storage"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/log"
)

var fxLogger = log.Logger("widgetsync/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. EventBus、Metrics
//  2. Storage（仅 save_state 时打开数据库）
//  3. Loader → Manager 依赖
//  4. Registry、Render
func buildFxApp(o *options, cfg *config.Config, h *Host) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		eventbus.Module(),
		metrics.Module(),
		storage.Module(),
		loader.Module(),
		manager.Module(),
		registry.Module(),
		render.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 注入的协作者
	// ════════════════════════════════════════════════════════════════════════
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if o.httpClient != nil {
		modules = append(modules, fx.Supply(o.httpClient))
	}
	if o.renderHost != nil {
		rh := o.renderHost
		modules = append(modules, fx.Provide(func() pkgif.RenderHost { return rh }))
	}
	for _, ext := range o.extensions {
		ext := ext
		modules = append(modules, fx.Provide(
			fx.Annotate(func() pkgif.Extension { return ext }, fx.ResultTags(`group:"extensions"`)),
		))
	}
	modules = append(modules, o.fxOptions...)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 填充门面
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Populate(&h.registry, &h.loader, &h.binder, &h.deps, &h.snapshots, &h.engine, &h.metrics),
		fx.WithLogger(newFxEventLogger),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return app, nil
}

// newFxEventLogger 组件级别为 debug 时把容器事件转到 slog，否则静默
func newFxEventLogger() fxevent.Logger {
	if log.ConfigFromEnv().LevelFor(fxLogger.Component()) <= slog.LevelDebug {
		return &fxevent.SlogLogger{Logger: fxLogger.With()}
	}
	return &fxevent.ZapLogger{Logger: zap.NewNop()}
}
