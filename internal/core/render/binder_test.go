package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dep2p/go-widgetsync/internal/core/eventbus"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// fakeHost 记录挂载并允许模拟视图移除
type fakeHost struct {
	mu       sync.Mutex
	attached map[string]types.View
	removed  []pkgif.ViewRemovedFunc
	fail     error
}

func newFakeHost() *fakeHost {
	return &fakeHost{attached: make(map[string]types.View)}
}

func (h *fakeHost) Attach(_ context.Context, view types.View, mount string) error {
	if h.fail != nil {
		return h.fail
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached[mount] = view
	return nil
}

func (h *fakeHost) OnViewRemoved(fn pkgif.ViewRemovedFunc) pkgif.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, fn)
	return pkgif.NopHandle
}

func (h *fakeHost) remove(view types.View) {
	h.mu.Lock()
	fns := append([]pkgif.ViewRemovedFunc(nil), h.removed...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(view)
	}
}

func TestBind(t *testing.T) {
	host := newFakeHost()
	b, err := NewBinder(host, nil)
	require.NoError(t, err)
	defer b.Close()

	binding, err := b.Bind(context.Background(), "k1", types.View{Model: "m1", Class: "SliderView"}, "#out")
	require.NoError(t, err)
	assert.True(t, binding.Valid())
	assert.NoError(t, binding.Check())
	assert.Equal(t, "#out", binding.Mount())
	assert.NotEmpty(t, binding.View().ID)
	assert.Equal(t, types.SessionKey("k1"), binding.View().Session)

	host.mu.Lock()
	assert.Equal(t, binding.View(), host.attached["#out"])
	host.mu.Unlock()
	assert.Len(t, b.Bindings("k1"), 1)
}

func TestBind_Errors(t *testing.T) {
	b, err := NewBinder(nil, nil)
	require.NoError(t, err)
	_, err = b.Bind(context.Background(), "k1", types.View{}, "#out")
	assert.ErrorIs(t, err, ErrNoHost)

	host := newFakeHost()
	host.fail = errors.New("no such element")
	b, err = NewBinder(host, nil)
	require.NoError(t, err)
	_, err = b.Bind(context.Background(), "k1", types.View{}, "#missing")
	assert.ErrorIs(t, err, host.fail)
	assert.Empty(t, b.Bindings("k1"))
}

func TestManagerDisposedInvalidates(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	b, err := NewBinder(newFakeHost(), bus)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	b1, err := b.Bind(ctx, "k1", types.View{Model: "m1"}, "#a")
	require.NoError(t, err)
	b2, err := b.Bind(ctx, "k2", types.View{Model: "m2"}, "#b")
	require.NoError(t, err)

	eventbus.Emit(bus, types.EvtManagerDisposed{
		BaseEvent: types.NewBaseEvent(types.EventManagerDisposed),
		Key:       "k1",
		Reason:    types.DisposeReleased,
	})

	assert.Eventually(t, func() bool { return !b1.Valid() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, b1.Check(), ErrBindingInvalid)
	assert.True(t, b2.Valid())
	assert.Empty(t, b.Bindings("k1"))
}

func TestRekeyMovesBindings(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	b, err := NewBinder(newFakeHost(), bus)
	require.NoError(t, err)
	defer b.Close()

	binding, err := b.Bind(context.Background(), "old", types.View{Model: "m1"}, "#a")
	require.NoError(t, err)

	eventbus.Emit(bus, types.EvtSessionRekeyed{
		BaseEvent: types.NewBaseEvent(types.EventSessionRekeyed),
		Old:       "old",
		New:       "new",
	})
	assert.Eventually(t, func() bool { return binding.Key() == "new" }, time.Second, 5*time.Millisecond)
	assert.Len(t, b.Bindings("new"), 1)
	assert.Empty(t, b.Bindings("old"))

	// 之后的销毁事件针对新标识
	assert.Equal(t, 1, b.Invalidate("new", "test"))
	assert.False(t, binding.Valid())
}

func TestViewRemovedDropsBinding(t *testing.T) {
	host := newFakeHost()
	b, err := NewBinder(host, nil)
	require.NoError(t, err)
	defer b.Close()

	binding, err := b.Bind(context.Background(), "k1", types.View{Model: "m1"}, "#a")
	require.NoError(t, err)
	host.remove(binding.View())

	assert.False(t, binding.Valid())
	assert.Empty(t, b.Bindings("k1"))
}

func TestUnbindAndClose(t *testing.T) {
	b, err := NewBinder(newFakeHost(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	b1, err := b.Bind(ctx, "k1", types.View{}, "#a")
	require.NoError(t, err)
	b2, err := b.Bind(ctx, "k1", types.View{}, "#b")
	require.NoError(t, err)

	b.Unbind(b1)
	assert.False(t, b1.Valid())
	assert.Len(t, b.Bindings("k1"), 1)

	require.NoError(t, b.Close())
	assert.False(t, b2.Valid())
	_, err = b.Bind(ctx, "k1", types.View{}, "#c")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestModule(t *testing.T) {
	var b *Binder
	app := fxtest.New(t,
		eventbus.Module(),
		Module(),
		fx.Provide(func() pkgif.RenderHost { return newFakeHost() }),
		fx.Populate(&b),
	)
	app.RequireStart()
	binding, err := b.Bind(context.Background(), "k1", types.View{}, "#a")
	require.NoError(t, err)
	app.RequireStop()
	assert.False(t, binding.Valid())
}
