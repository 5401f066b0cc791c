package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/eventbus"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"go.uber.org/multierr"
)

// ============================================================================
//                              记录
// ============================================================================

// record 一个会话的管理器记录
type record struct {
	key       types.SessionKey
	state     types.RecordState
	mgr       pkgif.Manager
	consumers map[types.ConsumerID]struct{}

	// 构造结果：ready 关闭后 err/mgr 可读
	ready   chan struct{}
	settled bool
	err     error
	cancel  context.CancelFunc

	// 迁移前的旧标识（墓碑）
	aliases []types.SessionKey
}

// settle 结束等待；只生效一次，调用方持有锁
func (rec *record) settle(err error) {
	if rec.settled {
		return
	}
	rec.settled = true
	rec.err = err
	close(rec.ready)
}

// ============================================================================
//                              Registry
// ============================================================================

// Option 注册表选项
type Option func(*Registry)

// WithEventBus 发布生命周期事件
func WithEventBus(bus pkgif.EventBus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithMetrics 记录注册表指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry 会话 → 共享管理器
type Registry struct {
	cfg     config.RegistryConfig
	bus     pkgif.EventBus
	metrics *metrics.Metrics

	mu         sync.Mutex
	records    map[types.SessionKey]*record
	tombstones map[types.SessionKey]*record
	closed     bool
}

var _ pkgif.ManagerRegistry = (*Registry)(nil)

// New 创建注册表
func New(cfg config.RegistryConfig, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:        cfg,
		records:    make(map[types.SessionKey]*record),
		tombstones: make(map[types.SessionKey]*record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ============================================================================
//                              Acquire / Release
// ============================================================================

// Acquire 获取会话的管理器并登记消费者
//
// 调用方 ctx 结束时只有该调用方退出并注销自己；构造本身受 ConstructTimeout 约束。
func (r *Registry) Acquire(ctx context.Context, key types.SessionKey, consumer types.ConsumerID, factory pkgif.ManagerFactory) (pkgif.Manager, error) {
	if key.IsEmpty() {
		return nil, types.ErrEmptySessionKey
	}
	if consumer.IsEmpty() {
		return nil, types.ErrEmptyConsumerID
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := r.tombstones[key]; ok {
		r.mu.Unlock()
		r.metrics.Acquire(metrics.OutcomeNotFound)
		return nil, fmt.Errorf("%w: %s was rekeyed", ErrNotFound, key.ShortString())
	}

	outcome := metrics.OutcomeCoalesced
	rec, ok := r.records[key]
	switch {
	case !ok:
		rec = r.startLocked(key, factory)
		outcome = metrics.OutcomeCreated
	case rec.state == types.RecordActive:
		rec.consumers[consumer] = struct{}{}
		mgr := rec.mgr
		r.mu.Unlock()
		r.metrics.Acquire(metrics.OutcomeJoined)
		logger.Debug("加入已有管理器", "session", key.ShortString(), "consumer", consumer)
		return mgr, nil
	}
	rec.consumers[consumer] = struct{}{}
	r.mu.Unlock()

	select {
	case <-rec.ready:
	case <-ctx.Done():
		logger.Debug("放弃等待构造", "session", key.ShortString(), "consumer", consumer)
		_ = r.drop(context.Background(), rec, consumer, types.DisposeCancelled)
		return nil, ctx.Err()
	}

	r.mu.Lock()
	err, mgr := rec.err, rec.mgr
	if err == nil {
		if _, still := rec.consumers[consumer]; !still || rec.state != types.RecordActive {
			err = fmt.Errorf("%w: %s", ErrDisposed, key.ShortString())
		}
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.Acquire(metrics.OutcomeError)
		return nil, err
	}
	r.metrics.Acquire(outcome)
	return mgr, nil
}

// startLocked 建立构造中的记录并在后台运行工厂
func (r *Registry) startLocked(key types.SessionKey, factory pkgif.ManagerFactory) *record {
	cctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConstructTimeout.Duration())
	rec := &record{
		key:       key,
		state:     types.RecordConstructing,
		consumers: make(map[types.ConsumerID]struct{}),
		ready:     make(chan struct{}),
		cancel:    cancel,
	}
	r.records[key] = rec
	logger.Debug("开始构造管理器", "session", key.ShortString())
	go r.construct(cctx, rec, factory)
	return rec
}

func (r *Registry) construct(ctx context.Context, rec *record, factory pkgif.ManagerFactory) {
	defer rec.cancel()
	mgr, err := factory(ctx, rec.key)

	r.mu.Lock()
	if err == nil && mgr == nil {
		err = fmt.Errorf("factory returned nil manager")
	}
	if err != nil {
		if rec.state != types.RecordDisposed {
			rec.state = types.RecordAbsent
			if r.records[rec.key] == rec {
				delete(r.records, rec.key)
			}
		}
		rec.settle(fmt.Errorf("registry: construct manager for %s: %w", rec.key.ShortString(), err))
		r.mu.Unlock()
		logger.Warn("管理器构造失败", "session", rec.key.ShortString(), "err", err)
		return
	}

	if rec.state == types.RecordDisposed {
		// 构造期间已被释放
		rec.settle(fmt.Errorf("%w: %s", ErrDisposed, rec.key.ShortString()))
		r.mu.Unlock()
		logger.Debug("构造完成但已取消，立即销毁", "session", rec.key.ShortString())
		dctx, cancel := context.WithTimeout(context.Background(), r.cfg.DisposeTimeout.Duration())
		defer cancel()
		if derr := mgr.Dispose(dctx); derr != nil {
			logger.Warn("销毁已取消的管理器失败", "session", rec.key.ShortString(), "err", derr)
		}
		return
	}

	rec.mgr = mgr
	rec.state = types.RecordActive
	rec.settle(nil)
	key := rec.key
	r.mu.Unlock()

	r.metrics.ManagerCreated()
	logger.Info("管理器已创建", "session", key.ShortString())
	eventbus.Emit(r.bus, types.EvtManagerCreated{
		BaseEvent: types.NewBaseEvent(types.EventManagerCreated),
		Key:       key,
	})
}

// Release 注销消费者；集合为空时销毁管理器
func (r *Registry) Release(ctx context.Context, key types.SessionKey, consumer types.ConsumerID) error {
	r.mu.Lock()
	if _, ok := r.tombstones[key]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s was rekeyed", ErrNotFound, key.ShortString())
	}
	rec, ok := r.records[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key.ShortString())
	}
	if _, ok := rec.consumers[consumer]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrUnknownConsumer, consumer, key.ShortString())
	}
	mgr, reason, retired := r.dropLocked(rec, consumer, types.DisposeReleased)
	r.mu.Unlock()

	if !retired {
		return nil
	}
	return r.finish(ctx, rec, mgr, reason)
}

// drop 移除 rec 上的消费者，集合变空时销毁
func (r *Registry) drop(ctx context.Context, rec *record, consumer types.ConsumerID, reason types.DisposeReason) error {
	r.mu.Lock()
	mgr, reason, retired := r.dropLocked(rec, consumer, reason)
	r.mu.Unlock()

	if !retired {
		return nil
	}
	return r.finish(ctx, rec, mgr, reason)
}

// dropLocked 移除消费者；集合变空时退役记录并返回需要在锁外销毁的管理器
func (r *Registry) dropLocked(rec *record, consumer types.ConsumerID, reason types.DisposeReason) (pkgif.Manager, types.DisposeReason, bool) {
	delete(rec.consumers, consumer)
	if len(rec.consumers) > 0 || rec.state == types.RecordDisposed || rec.state == types.RecordAbsent {
		return nil, reason, false
	}
	if rec.state == types.RecordConstructing {
		reason = types.DisposeCancelled
	}
	return r.retireLocked(rec), reason, true
}

// retireLocked 把记录标记为已销毁并移出映射，返回需要销毁的管理器
func (r *Registry) retireLocked(rec *record) pkgif.Manager {
	wasConstructing := rec.state == types.RecordConstructing
	rec.state = types.RecordDisposed
	if r.records[rec.key] == rec {
		delete(r.records, rec.key)
	}
	for _, old := range rec.aliases {
		if r.tombstones[old] == rec {
			delete(r.tombstones, old)
		}
	}
	if wasConstructing {
		rec.cancel()
		rec.settle(fmt.Errorf("%w: %s", ErrDisposed, rec.key.ShortString()))
		return nil
	}
	return rec.mgr
}

// finish 在锁外销毁管理器并发布事件
func (r *Registry) finish(ctx context.Context, rec *record, mgr pkgif.Manager, reason types.DisposeReason) error {
	if mgr == nil {
		logger.Debug("构造已取消", "session", rec.key.ShortString())
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, r.cfg.DisposeTimeout.Duration())
	defer cancel()
	err := mgr.Dispose(dctx)
	r.metrics.ManagerDisposed()
	logger.Info("管理器已销毁", "session", rec.key.ShortString(), "reason", reason)
	eventbus.Emit(r.bus, types.EvtManagerDisposed{
		BaseEvent: types.NewBaseEvent(types.EventManagerDisposed),
		Key:       rec.key,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("registry: dispose %s: %w", rec.key.ShortString(), err)
	}
	return nil
}

// ============================================================================
//                              Rekey / Evict
// ============================================================================

// Rekey 把活跃记录迁移到新标识
func (r *Registry) Rekey(old, new types.SessionKey) error {
	if old.IsEmpty() || new.IsEmpty() {
		return types.ErrEmptySessionKey
	}
	if old == new {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	rec, ok := r.records[old]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, old.ShortString())
	}
	if rec.state != types.RecordActive {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotActive, old.ShortString(), rec.state)
	}
	if _, busy := r.records[new]; busy {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrKeyInUse, new.ShortString())
	}

	delete(r.records, old)
	delete(r.tombstones, new)
	r.records[new] = rec
	r.tombstones[old] = rec
	rec.aliases = append(rec.aliases, old)
	rec.key = new
	mgr := rec.mgr
	r.mu.Unlock()

	mgr.Rekey(new)
	logger.Info("会话已迁移", "old", old.ShortString(), "new", new.ShortString())
	eventbus.Emit(r.bus, types.EvtSessionRekeyed{
		BaseEvent: types.NewBaseEvent(types.EventSessionRekeyed),
		Old:       old,
		New:       new,
	})
	return nil
}

// Evict 会话结束时无视消费者直接销毁
func (r *Registry) Evict(ctx context.Context, key types.SessionKey) error {
	r.mu.Lock()
	rec, ok := r.records[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key.ShortString())
	}
	rec.consumers = make(map[types.ConsumerID]struct{})
	mgr := r.retireLocked(rec)
	r.mu.Unlock()

	return r.finish(ctx, rec, mgr, types.DisposeEvicted)
}

// ============================================================================
//                              查询
// ============================================================================

// Get 返回活跃的管理器
func (r *Registry) Get(key types.SessionKey) (pkgif.Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok || rec.state != types.RecordActive {
		return nil, false
	}
	return rec.mgr, true
}

// State 返回记录状态；迁移走的旧标识视为 Absent
func (r *Registry) State(key types.SessionKey) types.RecordState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[key]; ok {
		return rec.state
	}
	return types.RecordAbsent
}

// Keys 返回所有记录的标识（有序）
func (r *Registry) Keys() []types.SessionKey {
	r.mu.Lock()
	keys := make([]types.SessionKey, 0, len(r.records))
	for k := range r.records {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Consumers 返回会话上登记的消费者（有序）
func (r *Registry) Consumers(key types.SessionKey) []types.ConsumerID {
	r.mu.Lock()
	rec, ok := r.records[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	out := make([]types.ConsumerID, 0, len(rec.consumers))
	for c := range rec.consumers {
		out = append(out, c)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len 记录数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 销毁所有管理器；之后的 Acquire 返回 ErrClosed
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	type pending struct {
		rec *record
		mgr pkgif.Manager
	}
	var all []pending
	for _, rec := range r.records {
		rec.consumers = make(map[types.ConsumerID]struct{})
		all = append(all, pending{rec: rec, mgr: r.retireLocked(rec)})
	}
	r.mu.Unlock()

	var errs error
	for _, p := range all {
		errs = multierr.Append(errs, r.finish(ctx, p.rec, p.mgr, types.DisposeShutdown))
	}
	logger.Info("注册表已关闭", "disposed", len(all))
	return errs
}
