package storage

import (
	"context"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine/badger"
	"github.com/dep2p/go-widgetsync/internal/core/storage/snapshot"
	"go.uber.org/fx"
)

// Params 存储模块依赖
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Result 存储模块输出；未启用时字段为 nil
type Result struct {
	fx.Out

	Engine    engine.Engine
	Store     *snapshot.Store
	Snapshots manager.SnapshotStore
}

// Module 返回存储 Fx 模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 按配置打开数据库
func ProvideStorage(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.Config)
	if !cfg.Enabled {
		logger.Debug("未启用保存状态，跳过存储引擎")
		return Result{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	eng, err := NewEngine(cfg)
	if err != nil {
		return Result{}, err
	}
	store := snapshot.New(eng)
	return Result{Engine: eng, Store: store, Snapshots: store}, nil
}

func registerLifecycle(lc fx.Lifecycle, eng engine.Engine) {
	if eng == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := eng.Start(); err != nil {
				logger.Error("存储引擎启动失败", "error", err)
				return err
			}
			logger.Info("存储引擎已启动")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := eng.Close(); err != nil {
				logger.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			logger.Info("存储引擎已关闭")
			return nil
		},
	})
}

// NewEngine 根据配置创建存储引擎
func NewEngine(cfg Config) (engine.Engine, error) {
	eng, err := badger.New(cfg.ToEngineConfig())
	if err != nil {
		logger.Error("创建存储引擎失败", "path", cfg.Path, "error", err)
		return nil, err
	}
	return eng, nil
}

// Open 在 path 打开引擎并返回快照存储，调用方负责关闭引擎
func Open(path string) (engine.Engine, *snapshot.Store, error) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Path = path
	eng, err := NewEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, snapshot.New(eng), nil
}
