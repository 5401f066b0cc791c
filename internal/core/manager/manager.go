package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/eventbus"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	"github.com/dep2p/go-widgetsync/internal/core/model"
	"github.com/dep2p/go-widgetsync/internal/core/wire"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/future"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
//                              依赖
// ============================================================================

// SnapshotStore 按会话保存快照
type SnapshotStore interface {
	Put(ctx context.Context, key types.SessionKey, st *SavedState) error
	// Get 没有快照时返回包装 ErrNoSnapshot 的错误
	Get(ctx context.Context, key types.SessionKey) (*SavedState, error)
}

// Deps 管理器依赖
type Deps struct {
	Resolver pkgif.ClassResolver
	Channel  config.ChannelConfig
	EventBus pkgif.EventBus
	Metrics  *metrics.Metrics

	// Snapshots 为 nil 时 Save/Load 不可用
	Snapshots SnapshotStore
	// SaveOnDispose 销毁前写入快照
	SaveOnDispose bool

	// OnKeyChange 启动后跟随会话身份变更；销毁时注销
	OnKeyChange pkgif.KeyChangeFunc
}

// ModelFunc 模型回调
type ModelFunc func(mdl *model.Model)

// ============================================================================
//                              Manager
// ============================================================================

// Manager 会话同步权威，实现 interfaces.Manager
type Manager struct {
	session pkgif.Session
	deps    Deps

	ctx    context.Context
	cancel context.CancelFunc
	opens  sync.WaitGroup

	mu       sync.Mutex
	key      types.SessionKey
	models   map[types.ModelID]*model.Model
	opening  map[types.ModelID]*future.Future[*model.Model]
	target   pkgif.Handle
	keyWatch pkgif.Handle
	started  bool
	disposed bool

	createdFns []createdEntry
	nextFn     uint64

	disposeOnce sync.Once
	disposeErr  error
}

type createdEntry struct {
	id uint64
	fn ModelFunc
}

var _ pkgif.Manager = (*Manager)(nil)

// New 创建管理器；Start 之前不接收远端打开的通道
func New(session pkgif.Session, deps Deps) (*Manager, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	if deps.Resolver == nil {
		return nil, ErrNoResolver
	}
	if deps.Channel.TargetName == "" {
		deps.Channel = config.DefaultChannelConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		session: session,
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		key:     session.Key(),
		models:  make(map[types.ModelID]*model.Model),
		opening: make(map[types.ModelID]*future.Future[*model.Model]),
	}, nil
}

// Start 等待会话就绪后注册 comm 目标
func (m *Manager) Start(ctx context.Context) error {
	if err := m.session.Ready(ctx); err != nil {
		return fmt.Errorf("manager: session not ready: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	if m.started {
		return nil
	}
	h, err := m.session.RegisterTarget(m.deps.Channel.TargetName, m.handleOpen)
	if err != nil {
		return fmt.Errorf("manager: register target %s: %w", m.deps.Channel.TargetName, err)
	}
	m.target = h
	if m.deps.OnKeyChange != nil {
		m.keyWatch = m.session.OnKeyChange(m.deps.OnKeyChange)
	}
	m.started = true
	logger.Info("管理器已启动", "session", m.key.ShortString(), "target", m.deps.Channel.TargetName)
	return nil
}

// Key 当前会话标识
func (m *Manager) Key() types.SessionKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// Rekey 更新会话标识
func (m *Manager) Rekey(key types.SessionKey) {
	m.mu.Lock()
	old := m.key
	m.key = key
	m.mu.Unlock()
	logger.Debug("管理器标识已更新", "old", old.ShortString(), "new", key.ShortString())
}

// Session 底层会话
func (m *Manager) Session() pkgif.Session { return m.session }

// ============================================================================
//                              远端打开
// ============================================================================

// handleOpen 在会话分发队列上调用，解析与构造转到后台
func (m *Manager) handleOpen(ch pkgif.Channel, msg *pkgif.Message) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		go func() { _ = ch.Close(context.Background(), nil) }()
		return
	}
	fut := future.New[*model.Model]()
	m.opening[ch.ID()] = fut
	m.opens.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.opens.Done()
		mdl, err := m.openRemote(ch, msg)

		m.mu.Lock()
		delete(m.opening, ch.ID())
		m.mu.Unlock()

		if err != nil {
			logger.Warn("无法构造远端打开的模型", "model", ch.ID().ShortString(), "err", err)
			_ = ch.Close(context.Background(), nil)
			_ = fut.Reject(err)
			return
		}
		_ = fut.Resolve(mdl)
	}()
}

func (m *Manager) openRemote(ch pkgif.Channel, msg *pkgif.Message) (*model.Model, error) {
	state, err := wire.DecodeOpen(msg)
	if err != nil {
		return nil, err
	}
	desc, err := wire.ClassOf(state)
	if err != nil {
		return nil, err
	}
	cls, err := m.deps.Resolver.Resolve(m.ctx, desc)
	if err != nil {
		return nil, err
	}

	mdl := m.newModel(ch.ID(), cls, state)
	if err := mdl.Attach(ch); err != nil {
		return nil, err
	}
	if err := m.register(mdl); err != nil {
		_ = mdl.Close(context.Background())
		return nil, err
	}
	return mdl, nil
}

// newModel 类默认值与给定状态合并后构造
func (m *Manager) newModel(id types.ModelID, cls *pkgif.Class, state statetree.Mapping) *model.Model {
	initial := statetree.Merge(statetree.CloneMapping(cls.Defaults), state)
	opts := []model.Option{
		model.WithMetrics(m.deps.Metrics),
		model.WithOnClosed(m.modelClosed),
	}
	if wire.ViewOf(initial) == "" && cls.View != "" {
		opts = append(opts, model.WithView(cls.View))
	}
	return model.New(id, cls.Descriptor, initial, model.Config{SuppressEcho: m.deps.Channel.SuppressEcho}, opts...)
}

// register 登记模型并通知
func (m *Manager) register(mdl *model.Model) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	if _, ok := m.models[mdl.ID()]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModelExists, mdl.ID())
	}
	m.models[mdl.ID()] = mdl
	key := m.key
	fns := make([]ModelFunc, 0, len(m.createdFns))
	for _, e := range m.createdFns {
		fns = append(fns, e.fn)
	}
	m.mu.Unlock()

	logger.Debug("模型已创建", "session", key.ShortString(), "model", mdl.ID().ShortString(), "class", mdl.Class().String())
	eventbus.Emit(m.deps.EventBus, types.EvtModelCreated{
		BaseEvent: types.NewBaseEvent(types.EventModelCreated),
		Key:       key,
		Model:     mdl.ID(),
		Class:     mdl.Class(),
	})
	for _, fn := range fns {
		fn(mdl)
	}
	return nil
}

func (m *Manager) modelClosed(mdl *model.Model) {
	m.mu.Lock()
	if m.models[mdl.ID()] != mdl {
		m.mu.Unlock()
		return
	}
	delete(m.models, mdl.ID())
	key := m.key
	m.mu.Unlock()

	logger.Debug("模型已关闭", "session", key.ShortString(), "model", mdl.ID().ShortString())
	eventbus.Emit(m.deps.EventBus, types.EvtModelClosed{
		BaseEvent: types.NewBaseEvent(types.EventModelClosed),
		Key:       key,
		Model:     mdl.ID(),
	})
}

// ============================================================================
//                              本端创建
// ============================================================================

// CreateModel 解析类、打开通道并发送初始状态
func (m *Manager) CreateModel(ctx context.Context, desc types.ClassDescriptor, state statetree.Mapping) (*model.Model, error) {
	m.mu.Lock()
	started, disposed := m.started, m.disposed
	m.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}
	if !started {
		return nil, ErrNotStarted
	}

	cls, err := m.deps.Resolver.Resolve(ctx, desc)
	if err != nil {
		return nil, err
	}
	id := types.NewModelID()
	mdl := m.newModel(id, cls, statetree.Merge(state, wire.ClassState(cls.Descriptor)))

	msg, err := wire.EncodeOpen(mdl.State(), m.deps.Channel.ProtocolVersion)
	if err != nil {
		return nil, err
	}
	ch, err := m.session.OpenChannel(ctx, m.deps.Channel.TargetName, id, msg)
	if err != nil {
		return nil, fmt.Errorf("manager: open channel for %s: %w", desc, err)
	}
	if err := mdl.Attach(ch); err != nil {
		_ = ch.Close(ctx, nil)
		return nil, err
	}
	if err := m.register(mdl); err != nil {
		_ = mdl.Close(ctx)
		return nil, err
	}
	return mdl, nil
}

// ============================================================================
//                              查询
// ============================================================================

func (m *Manager) lookup(id types.ModelID) (*model.Model, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mdl, ok := m.models[id]
	return mdl, ok
}

// Model 返回模型；该标识仍在构造中时等待构造结果
func (m *Manager) Model(ctx context.Context, id types.ModelID) (*model.Model, error) {
	m.mu.Lock()
	if mdl, ok := m.models[id]; ok {
		m.mu.Unlock()
		return mdl, nil
	}
	fut, ok := m.opening[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return fut.Wait(ctx)
}

// Models 返回全部已构造的模型（按标识排序）
func (m *Manager) Models() []*model.Model {
	m.mu.Lock()
	out := make([]*model.Model, 0, len(m.models))
	for _, mdl := range m.models {
		out = append(out, mdl)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// OnModelCreated 注册模型创建回调（本端与远端创建都会触发）
func (m *Manager) OnModelCreated(fn ModelFunc) pkgif.Handle {
	m.mu.Lock()
	m.nextFn++
	id := m.nextFn
	m.createdFns = append(m.createdFns, createdEntry{id: id, fn: fn})
	m.mu.Unlock()

	return pkgif.HandleFunc(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.createdFns {
			if e.id == id {
				m.createdFns = append(m.createdFns[:i], m.createdFns[i+1:]...)
				return
			}
		}
	})
}

// ============================================================================
//                              刷新与销毁
// ============================================================================

// Flush 并行等待所有模型的待同步状态
func (m *Manager) Flush(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, mdl := range m.Models() {
		mdl := mdl
		g.Go(func() error { return mdl.Flush(gctx) })
	}
	return g.Wait()
}

// Disposed 是否已销毁
func (m *Manager) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Dispose 刷新、关闭全部通道并注销 comm 目标；幂等
func (m *Manager) Dispose(ctx context.Context) error {
	m.disposeOnce.Do(func() { m.disposeErr = m.dispose(ctx) })
	return m.disposeErr
}

func (m *Manager) dispose(ctx context.Context) error {
	var errs error
	if m.deps.SaveOnDispose && m.deps.Snapshots != nil {
		if err := m.Save(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("save state: %w", err))
		}
	}

	m.mu.Lock()
	m.disposed = true
	target, keyWatch := m.target, m.keyWatch
	m.target, m.keyWatch = nil, nil
	m.mu.Unlock()

	if keyWatch != nil {
		errs = multierr.Append(errs, keyWatch.Close())
	}
	if target != nil {
		errs = multierr.Append(errs, target.Close())
	}
	m.cancel()
	if err := m.waitOpens(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, mdl := range m.Models() {
		mdl := mdl
		g.Go(func() error {
			if err := mdl.Close(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("close model %s: %w", mdl.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("管理器已销毁", "session", m.Key().ShortString(), "errors", len(multierr.Errors(errs)))
	return errs
}

// waitOpens 等待后台构造退出
func (m *Manager) waitOpens(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.opens.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait pending opens: %w", ctx.Err())
	}
}

// ============================================================================
//                              工厂
// ============================================================================

// SessionOpener 按会话标识取得会话
type SessionOpener func(ctx context.Context, key types.SessionKey) (pkgif.Session, error)

// Factory 返回注册表使用的管理器工厂
//
// 构造后启动管理器；配置了快照存储且 restore 为 true 时恢复保存的状态。
func Factory(deps Deps, open SessionOpener, restore bool) pkgif.ManagerFactory {
	return func(ctx context.Context, key types.SessionKey) (pkgif.Manager, error) {
		sess, err := open(ctx, key)
		if err != nil {
			return nil, err
		}
		mgr, err := New(sess, deps)
		if err != nil {
			return nil, err
		}
		if err := mgr.Start(ctx); err != nil {
			_ = mgr.Dispose(context.Background())
			return nil, err
		}
		if restore && deps.Snapshots != nil {
			if _, err := mgr.Load(ctx); err != nil && !errors.Is(err, ErrNoSnapshot) {
				logger.Warn("恢复保存的状态失败", "session", key.ShortString(), "err", err)
			}
		}
		return mgr, nil
	}
}
