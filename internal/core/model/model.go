package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	"github.com/dep2p/go-widgetsync/internal/core/wire"
	"github.com/dep2p/go-widgetsync/internal/util/serial"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/future"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// ============================================================================
//                              选项
// ============================================================================

// Config 模型配置
type Config struct {
	// SuppressEcho 所有本地 set 默认跟踪回声
	SuppressEcho bool
}

// Option 模型选项
type Option func(*Model)

// WithMetrics 记录同步指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(mod *Model) { mod.metrics = m }
}

// WithView 默认视图类名
func WithView(name string) Option {
	return func(mod *Model) { mod.view = name }
}

// WithOnClosed 通道关闭或模型关闭后调用一次
func WithOnClosed(fn func(*Model)) Option {
	return func(mod *Model) { mod.onClosed = fn }
}

// ============================================================================
//                              Model
// ============================================================================

// Model 同步模型，实现 interfaces.StateStore
type Model struct {
	id       types.ModelID
	class    types.ClassDescriptor
	view     string
	cfg      Config
	metrics  *metrics.Metrics
	onClosed func(*Model)

	mu        sync.Mutex
	state     statetree.Mapping
	ch        pkgif.Channel
	chHandles []pkgif.Handle
	connected bool
	closed    bool
	pending   map[string]types.MessageID

	stateFns  listeners[pkgif.StateChangeFunc]
	connFns   listeners[pkgif.ConnectedChangeFunc]
	customFns listeners[pkgif.CustomMessageFunc]

	notify   *serial.Queue
	outbound *serial.Queue
	closeOne sync.Once
}

var _ pkgif.StateStore = (*Model)(nil)

// New 创建未连接的模型
func New(id types.ModelID, class types.ClassDescriptor, initial statetree.Mapping, cfg Config, opts ...Option) *Model {
	if id.IsEmpty() {
		id = types.NewModelID()
	}
	state := make(statetree.Mapping, len(initial))
	for k, v := range initial {
		state[k] = v
	}
	m := &Model{
		id:       id,
		class:    class,
		cfg:      cfg,
		state:    state,
		pending:  make(map[string]types.MessageID),
		notify:   serial.New(),
		outbound: serial.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.view == "" {
		m.view = wire.ViewOf(state)
	}
	return m
}

// ID 模型标识
func (m *Model) ID() types.ModelID { return m.id }

// Class 模型类
func (m *Model) Class() types.ClassDescriptor { return m.class }

// View 默认视图类名
func (m *Model) View() string { return m.view }

// NewView 创建视图描述；class 为空时使用默认视图类
func (m *Model) NewView(class string) types.View {
	if class == "" {
		class = m.view
	}
	return types.View{ID: types.NewViewID(), Model: m.id, Class: class}
}

// ============================================================================
//                              通道
// ============================================================================

// Attach 绑定通道并标记为已连接
func (m *Model) Attach(ch pkgif.Channel) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.ch != nil {
		m.mu.Unlock()
		return ErrAlreadyAttached
	}
	m.ch = ch
	m.chHandles = []pkgif.Handle{
		ch.OnMessage(m.handleMessage),
		ch.OnClose(func(*pkgif.Message) { m.handleChannelClosed(ch) }),
	}
	m.setConnectedLocked(!ch.Closed())
	m.mu.Unlock()

	logger.Debug("模型已绑定通道", "model", m.id.ShortString(), "class", m.class.Class)
	return nil
}

// Connected 是否已连接
func (m *Model) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// setConnectedLocked 调用方持有 m.mu；只在翻转时通知
func (m *Model) setConnectedLocked(v bool) {
	if m.connected == v {
		return
	}
	m.connected = v
	m.notify.Go(func() {
		for _, fn := range m.connFns.snapshot() {
			fn(m, v)
		}
	})
}

func (m *Model) handleChannelClosed(ch pkgif.Channel) {
	m.mu.Lock()
	if m.ch != ch {
		m.mu.Unlock()
		return
	}
	m.detachLocked()
	m.mu.Unlock()
	logger.Debug("模型通道已关闭", "model", m.id.ShortString())
	m.fireClosed()
}

// detachLocked 调用方持有 m.mu
func (m *Model) detachLocked() {
	for _, h := range m.chHandles {
		_ = h.Close()
	}
	m.chHandles = nil
	m.ch = nil
	m.pending = make(map[string]types.MessageID)
	m.setConnectedLocked(false)
}

func (m *Model) fireClosed() {
	m.closeOne.Do(func() {
		if m.onClosed != nil {
			m.onClosed(m)
		}
	})
}

// ============================================================================
//                              读取
// ============================================================================

// Get 返回当前值
func (m *Model) Get(key string) (statetree.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[key]
	return v, ok
}

// State 返回当前状态的浅拷贝
func (m *Model) State() statetree.Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(statetree.Mapping, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out
}

// ============================================================================
//                              写入
// ============================================================================

// Set 合并部分状态，必要时同步到远端
func (m *Model) Set(partial statetree.Mapping, opts pkgif.SetOptions) *future.Future[struct{}] {
	if len(partial) == 0 {
		return future.Resolved(struct{}{})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return future.Failed[struct{}](ErrClosed)
	}

	ch := opts.Channel
	if ch == nil {
		ch = m.ch
	}
	doSync := ch != nil && m.connected && !opts.NoSync && opts.Origin == types.OriginLocal

	var msg *pkgif.Message
	if doSync {
		var err error
		msg, err = wire.EncodeUpdate(partial, wire.MethodUpdate)
		if err != nil {
			m.metrics.ModelSync(0, err)
			logger.Warn("状态序列化失败", "model", m.id.ShortString(), "err", err)
			return future.Failed[struct{}](err)
		}
	}

	m.applyLocked(partial)

	if !doSync {
		return future.Resolved(struct{}{})
	}
	if opts.SuppressEcho || m.cfg.SuppressEcho {
		for k := range partial {
			m.pending[k] = msg.ID
		}
	}
	fut := future.New[struct{}]()
	m.outbound.Go(func() { m.deliver(ch, msg, fut) })
	return fut
}

// SetValues 转换 Go 值后 Set
func (m *Model) SetValues(values map[string]any, opts pkgif.SetOptions) *future.Future[struct{}] {
	partial := make(statetree.Mapping, len(values))
	for k, v := range values {
		val, err := statetree.FromGo(v)
		if err != nil {
			return future.Failed[struct{}](&statetree.SerializationError{
				Op:   "convert",
				Path: statetree.Path{statetree.KeySegment(k)},
				Err:  err,
			})
		}
		partial[k] = val
	}
	return m.Set(partial, opts)
}

// applyLocked 合并并排队通知；调用方持有 m.mu
func (m *Model) applyLocked(partial statetree.Mapping) {
	changed := statetree.Changed(m.state, partial)
	m.state = statetree.Merge(m.state, partial)
	if len(changed) == 0 {
		return
	}
	m.notify.Go(func() {
		for _, fn := range m.stateFns.snapshot() {
			fn(m, changed)
		}
	})
}

// deliver 在出站队列上执行
func (m *Model) deliver(ch pkgif.Channel, msg *pkgif.Message, fut *future.Future[struct{}]) {
	err := ch.Send(context.Background(), msg)
	if m.metrics != nil {
		m.metrics.ModelSync(messageSize(msg), err)
	}
	if err != nil {
		logger.Warn("状态同步发送失败", "model", m.id.ShortString(), "err", err)
		m.mu.Lock()
		for k, id := range m.pending {
			if id == msg.ID {
				delete(m.pending, k)
			}
		}
		m.mu.Unlock()
		_ = fut.Reject(err)
		return
	}
	_ = fut.Resolve(struct{}{})
}

func messageSize(msg *pkgif.Message) int {
	n := 0
	if data, err := statetree.Marshal(msg.Data); err == nil {
		n = len(data)
	}
	for _, b := range msg.Buffers {
		n += b.Len()
	}
	return n
}

// ============================================================================
//                              入站
// ============================================================================

// handleMessage 在会话队列上调用
func (m *Model) handleMessage(msg *pkgif.Message) {
	upd, err := wire.Decode(msg)
	if err != nil {
		logger.Warn("丢弃无法解码的消息", "model", m.id.ShortString(), "err", err)
		return
	}
	switch upd.Method {
	case wire.MethodUpdate:
		m.applyRemote(upd.State)
	case wire.MethodEchoUpdate:
		m.applyEcho(upd.State, msg.ParentID)
	case wire.MethodRequestState:
		m.sendFullState()
	case wire.MethodCustom:
		content, buffers := upd.Content, upd.Buffers
		m.notify.Go(func() {
			for _, fn := range m.customFns.snapshot() {
				fn(m, content, buffers)
			}
		})
	}
}

func (m *Model) applyRemote(state statetree.Mapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.applyLocked(state)
}

// applyEcho 有待确认记录的键不应用；parent 匹配时清除记录
func (m *Model) applyEcho(state statetree.Mapping, parent types.MessageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	accepted := make(statetree.Mapping, len(state))
	for k, v := range state {
		if id, ok := m.pending[k]; ok {
			if id == parent {
				delete(m.pending, k)
			}
			continue
		}
		accepted[k] = v
	}
	if len(accepted) > 0 {
		m.applyLocked(accepted)
	}
}

// sendFullState 响应 request_state
func (m *Model) sendFullState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ch == nil || m.closed {
		return
	}
	msg, err := wire.EncodeUpdate(m.state, wire.MethodUpdate)
	if err != nil {
		logger.Warn("完整状态序列化失败", "model", m.id.ShortString(), "err", err)
		return
	}
	ch := m.ch
	fut := future.New[struct{}]()
	m.outbound.Go(func() { m.deliver(ch, msg, fut) })
}

// PendingEchoes 等待回声确认的键数
func (m *Model) PendingEchoes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// ============================================================================
//                              监听与自定义消息
// ============================================================================

// OnStateChange 注册状态变更监听
func (m *Model) OnStateChange(fn pkgif.StateChangeFunc) pkgif.Handle {
	return m.stateFns.add(fn)
}

// OnConnectedChange 注册连接状态监听
func (m *Model) OnConnectedChange(fn pkgif.ConnectedChangeFunc) pkgif.Handle {
	return m.connFns.add(fn)
}

// OnCustomMessage 注册自定义消息监听
func (m *Model) OnCustomMessage(fn pkgif.CustomMessageFunc) pkgif.Handle {
	return m.customFns.add(fn)
}

// Send 发送自定义消息
func (m *Model) Send(ctx context.Context, content statetree.Mapping, buffers []statetree.Buffer) error {
	m.mu.Lock()
	ch, connected := m.ch, m.connected
	m.mu.Unlock()
	if !connected || ch == nil {
		return ErrNotConnected
	}
	msg, err := wire.EncodeCustom(content, buffers)
	if err != nil {
		return err
	}
	return ch.Send(ctx, msg)
}

// ============================================================================
//                              刷新与关闭
// ============================================================================

// Flush 等待此前排队的同步发送完成
func (m *Model) Flush(ctx context.Context) error {
	return m.outbound.Drain(ctx)
}

// Settle 等待此前排队的监听通知执行完
func (m *Model) Settle(ctx context.Context) error {
	return m.notify.Drain(ctx)
}

// Close 刷新待同步状态后关闭通道；重复调用无操作
func (m *Model) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.Flush(ctx)

	m.mu.Lock()
	ch := m.ch
	if ch != nil {
		m.detachLocked()
	}
	m.mu.Unlock()

	if ch != nil {
		if cerr := ch.Close(ctx, nil); cerr != nil && err == nil {
			err = fmt.Errorf("close channel %s: %w", m.id, cerr)
		}
	}
	m.outbound.Close()
	m.fireClosed()
	return err
}

// Closed 是否已关闭
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
