package widgetsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/loader"
	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	"github.com/dep2p/go-widgetsync/internal/core/registry"
	"github.com/dep2p/go-widgetsync/internal/core/render"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
	"github.com/dep2p/go-widgetsync/internal/core/storage/snapshot"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// 生命周期超时
const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopGrace 在销毁超时之外为关闭存储预留的时间
	stopGrace = 5 * time.Second
)

// Host widget 同步入口
//
// Host 是门面，聚合注册表、类加载器、快照存储与渲染绑定。
// 一个进程通常只需要一个 Host；多个会话共享它。
type Host struct {
	opts *options
	cfg  *config.Config
	app  *fx.App

	// Fx 填充
	registry  *registry.Registry
	loader    *loader.Loader
	binder    *render.Binder
	deps      manager.Deps
	snapshots *snapshot.Store
	engine    engine.Engine
	metrics   *metrics.Metrics

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建 Host；需要调用 Start 之后才能获取管理器
func New(opts ...Option) (*Host, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	cfg := o.toConfig()

	h := &Host{opts: o, cfg: cfg}
	app, err := buildFxApp(o, cfg, h)
	if err != nil {
		return nil, err
	}
	h.app = app
	return h, nil
}

// Start 启动全部模块
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	if h.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := h.app.Start(startCtx); err != nil {
		return fmt.Errorf("start host: %w", err)
	}
	h.started = true
	logger.Info("Host 已启动",
		"version", Version,
		"saveState", h.cfg.Storage.SaveState,
		"remoteModules", h.cfg.Loader.RemoteEnabled())
	return nil
}

// Close 销毁全部管理器并停止模块；重复调用安全
//
// 启用保存状态时，管理器在销毁前写入快照。
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	started := h.started
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Registry.DisposeTimeout.Duration()+stopGrace)
	defer cancel()

	if started {
		if err := h.app.Stop(ctx); err != nil {
			return fmt.Errorf("stop host: %w", err)
		}
		logger.Info("Host 已关闭")
		return nil
	}

	// 未启动时生命周期钩子不会执行，只需释放构造阶段打开的资源
	var errs error
	errs = multierr.Append(errs, h.registry.Close(ctx))
	errs = multierr.Append(errs, h.binder.Close())
	if h.deps.EventBus != nil {
		if c, ok := h.deps.EventBus.(interface{ Close() error }); ok {
			errs = multierr.Append(errs, c.Close())
		}
	}
	if h.engine != nil {
		errs = multierr.Append(errs, h.engine.Close())
	}
	return errs
}

func (h *Host) running() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.closed:
		return ErrHostClosed
	case !h.started:
		return ErrNotStarted
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              管理器
// ════════════════════════════════════════════════════════════════════════════

// Acquire 获取会话的管理器并登记消费者
//
// 会话尚无管理器时用 session 构造一个；已有时直接加入，session 被忽略。
// 管理器跟随会话的身份变更自动迁移到新标识。
func (h *Host) Acquire(ctx context.Context, session pkgif.Session, consumer types.ConsumerID) (*manager.Manager, error) {
	if session == nil {
		return nil, ErrNilSession
	}
	return h.AcquireFunc(ctx, session.Key(), consumer, func(context.Context, types.SessionKey) (pkgif.Session, error) {
		return session, nil
	})
}

// AcquireFunc 与 Acquire 相同，但只在需要构造时调用 open 取得会话
func (h *Host) AcquireFunc(ctx context.Context, key types.SessionKey, consumer types.ConsumerID, open manager.SessionOpener) (*manager.Manager, error) {
	if err := h.running(); err != nil {
		return nil, err
	}
	deps := h.deps
	deps.OnKeyChange = h.followKey
	factory := manager.Factory(deps, open, h.cfg.Storage.SaveState)

	mgr, err := h.registry.Acquire(ctx, key, consumer, factory)
	if err != nil {
		return nil, err
	}
	m, ok := mgr.(*manager.Manager)
	if !ok {
		return nil, fmt.Errorf("unexpected manager type %T", mgr)
	}
	return m, nil
}

// followKey 会话迁移身份时同步注册表
func (h *Host) followKey(old, new types.SessionKey) {
	if err := h.registry.Rekey(old, new); err != nil {
		logger.Warn("跟随会话身份变更失败", "old", old.ShortString(), "new", new.ShortString(), "err", err)
	}
}

// Release 移除消费者；最后一个消费者离开时销毁管理器
func (h *Host) Release(ctx context.Context, key types.SessionKey, consumer types.ConsumerID) error {
	return h.registry.Release(ctx, key, consumer)
}

// Rekey 把活跃管理器迁移到新标识
func (h *Host) Rekey(old, new types.SessionKey) error {
	return h.registry.Rekey(old, new)
}

// Evict 无视消费者立即销毁管理器
func (h *Host) Evict(ctx context.Context, key types.SessionKey) error {
	return h.registry.Evict(ctx, key)
}

// Manager 返回会话的活跃管理器
func (h *Host) Manager(key types.SessionKey) (*manager.Manager, bool) {
	mgr, ok := h.registry.Get(key)
	if !ok {
		return nil, false
	}
	m, ok := mgr.(*manager.Manager)
	return m, ok
}

// SaveAll 为全部活跃管理器写入快照
func (h *Host) SaveAll(ctx context.Context) error {
	if h.snapshots == nil {
		return manager.ErrNoSnapshotStore
	}
	var errs error
	for _, key := range h.registry.Keys() {
		m, ok := h.Manager(key)
		if !ok {
			continue
		}
		if err := m.Save(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("save %s: %w", key, err))
		}
	}
	return errs
}

// ════════════════════════════════════════════════════════════════════════════
//                              类解析
// ════════════════════════════════════════════════════════════════════════════

// Resolve 解析模型类
func (h *Host) Resolve(ctx context.Context, desc types.ClassDescriptor) (*pkgif.Class, error) {
	return h.loader.Resolve(ctx, desc)
}

// RegisterExtension 注册进程内扩展
func (h *Host) RegisterExtension(ext pkgif.Extension) error {
	return h.loader.Register(ext)
}

// ════════════════════════════════════════════════════════════════════════════
//                              渲染
// ════════════════════════════════════════════════════════════════════════════

// Bind 把视图挂载到 mount；会话必须有活跃管理器
//
// 管理器销毁后绑定失效；会话迁移身份时绑定随之迁移。
func (h *Host) Bind(ctx context.Context, key types.SessionKey, view types.View, mount string) (*render.Binding, error) {
	if err := h.running(); err != nil {
		return nil, err
	}
	if _, ok := h.registry.Get(key); !ok {
		return nil, fmt.Errorf("bind view: %w: %s", ErrNotFound, key)
	}
	return h.binder.Bind(ctx, key, view, mount)
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效配置的副本
func (h *Host) Config() *config.Config { return h.cfg.Clone() }

// Registry 管理器注册表
func (h *Host) Registry() *registry.Registry { return h.registry }

// Loader 类加载器
func (h *Host) Loader() *loader.Loader { return h.loader }

// Binder 视图绑定器
func (h *Host) Binder() *render.Binder { return h.binder }

// Snapshots 快照存储；未启用保存状态时为 nil
func (h *Host) Snapshots() *snapshot.Store { return h.snapshots }

// Metrics 指标；未启用时为 nil
func (h *Host) Metrics() *metrics.Metrics { return h.metrics }
