package render

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dep2p/go-widgetsync/internal/core/eventbus"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"go.uber.org/multierr"
)

// ============================================================================
//                              Binding
// ============================================================================

// Binding 视图到挂载点的一次绑定
type Binding struct {
	view  types.View
	mount string

	mu     sync.Mutex
	key    types.SessionKey
	valid  bool
	reason string
}

// View 绑定的视图（Session 字段为绑定时的会话）
func (b *Binding) View() types.View { return b.view }

// Mount 挂载点
func (b *Binding) Mount() string { return b.mount }

// Key 绑定当前所属的会话
func (b *Binding) Key() types.SessionKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// Valid 绑定是否仍然有效
func (b *Binding) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

// Check 有效时返回 nil，否则返回包装 ErrBindingInvalid 的错误
func (b *Binding) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.valid {
		return nil
	}
	return fmt.Errorf("%w: view %s: %s", ErrBindingInvalid, b.view.ID, b.reason)
}

func (b *Binding) invalidate(reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid {
		return false
	}
	b.valid = false
	b.reason = reason
	return true
}

// ============================================================================
//                              Binder
// ============================================================================

// Binder 跟踪绑定并响应管理器生命周期事件
type Binder struct {
	host pkgif.RenderHost

	mu       sync.Mutex
	bindings map[types.SessionKey]map[types.ViewID]*Binding
	handles  []pkgif.Handle
	closed   bool
}

// NewBinder 创建绑定器；bus 为 nil 时只能手动 Invalidate / Rekey
func NewBinder(host pkgif.RenderHost, bus pkgif.EventBus) (*Binder, error) {
	b := &Binder{
		host:     host,
		bindings: make(map[types.SessionKey]map[types.ViewID]*Binding),
	}
	if bus != nil {
		h1, err := eventbus.On(bus, func(e types.EvtManagerDisposed) {
			b.Invalidate(e.Key, "manager "+string(e.Reason))
		})
		if err != nil {
			return nil, err
		}
		h2, err := eventbus.On(bus, func(e types.EvtSessionRekeyed) {
			b.Rekey(e.Old, e.New)
		})
		if err != nil {
			_ = h1.Close()
			return nil, err
		}
		b.handles = append(b.handles, h1, h2)
	}
	if host != nil {
		b.handles = append(b.handles, host.OnViewRemoved(b.viewRemoved))
	}
	return b, nil
}

// Bind 把视图挂载到 mount 并记录绑定
func (b *Binder) Bind(ctx context.Context, key types.SessionKey, view types.View, mount string) (*Binding, error) {
	if b.host == nil {
		return nil, ErrNoHost
	}
	if key.IsEmpty() {
		return nil, types.ErrEmptySessionKey
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	view.Session = key
	if view.ID == "" {
		view.ID = types.NewViewID()
	}
	if err := b.host.Attach(ctx, view, mount); err != nil {
		return nil, fmt.Errorf("render: attach view %s: %w", view.ID, err)
	}

	binding := &Binding{view: view, mount: mount, key: key, valid: true}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		binding.invalidate("binder closed")
		return nil, ErrClosed
	}
	set, ok := b.bindings[key]
	if !ok {
		set = make(map[types.ViewID]*Binding)
		b.bindings[key] = set
	}
	set[view.ID] = binding
	b.mu.Unlock()

	logger.Debug("视图已绑定", "session", key.ShortString(), "view", view.ID, "mount", mount)
	return binding, nil
}

// Unbind 丢弃绑定
func (b *Binder) Unbind(binding *Binding) {
	b.mu.Lock()
	key := binding.Key()
	if set, ok := b.bindings[key]; ok && set[binding.view.ID] == binding {
		delete(set, binding.view.ID)
		if len(set) == 0 {
			delete(b.bindings, key)
		}
	}
	b.mu.Unlock()
	binding.invalidate("unbound")
}

// Bindings 返回会话上的有效绑定（按视图标识排序）
func (b *Binder) Bindings(key types.SessionKey) []*Binding {
	b.mu.Lock()
	out := make([]*Binding, 0, len(b.bindings[key]))
	for _, binding := range b.bindings[key] {
		out = append(out, binding)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].view.ID < out[j].view.ID })
	return out
}

// Invalidate 使会话上的全部绑定失效，返回失效数
func (b *Binder) Invalidate(key types.SessionKey, reason string) int {
	b.mu.Lock()
	set := b.bindings[key]
	delete(b.bindings, key)
	b.mu.Unlock()

	n := 0
	for _, binding := range set {
		if binding.invalidate(reason) {
			n++
		}
	}
	if n > 0 {
		logger.Debug("绑定已失效", "session", key.ShortString(), "count", n, "reason", reason)
	}
	return n
}

// Rekey 把绑定迁移到新会话标识
func (b *Binder) Rekey(old, new types.SessionKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.bindings[old]
	if !ok {
		return
	}
	delete(b.bindings, old)
	dst, ok := b.bindings[new]
	if !ok {
		dst = make(map[types.ViewID]*Binding, len(set))
		b.bindings[new] = dst
	}
	for id, binding := range set {
		binding.mu.Lock()
		binding.key = new
		binding.mu.Unlock()
		dst[id] = binding
	}
}

func (b *Binder) viewRemoved(view types.View) {
	b.mu.Lock()
	var found *Binding
	for key, set := range b.bindings {
		if binding, ok := set[view.ID]; ok {
			found = binding
			delete(set, view.ID)
			if len(set) == 0 {
				delete(b.bindings, key)
			}
			break
		}
	}
	b.mu.Unlock()
	if found != nil {
		found.invalidate("view removed")
	}
}

// Close 注销事件订阅并使全部绑定失效
func (b *Binder) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	handles := b.handles
	b.handles = nil
	all := b.bindings
	b.bindings = make(map[types.SessionKey]map[types.ViewID]*Binding)
	b.mu.Unlock()

	var errs error
	for _, h := range handles {
		errs = multierr.Append(errs, h.Close())
	}
	for _, set := range all {
		for _, binding := range set {
			binding.invalidate("binder closed")
		}
	}
	return errs
}
