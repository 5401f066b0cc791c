package model

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dep2p/go-widgetsync/internal/core/channel"
	"github.com/dep2p/go-widgetsync/internal/core/wire"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClass = types.ClassDescriptor{Module: "@jupyter-widgets/controls", Version: "2.0.0", Class: "IntSliderModel"}

// kernelEnd 测试中扮演内核的一端
type kernelEnd struct {
	ch  pkgif.Channel
	in  chan *pkgif.Message
	ctx context.Context
}

func (k *kernelEnd) recv(t *testing.T) *pkgif.Message {
	t.Helper()
	select {
	case m := <-k.in:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("kernel received nothing")
		return nil
	}
}

func (k *kernelEnd) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case m := <-k.in:
		t.Fatalf("unexpected message to kernel: %v", m.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func (k *kernelEnd) send(t *testing.T, method string, state statetree.Mapping, parent types.MessageID) {
	t.Helper()
	msg, err := wire.EncodeUpdate(state, method)
	require.NoError(t, err)
	msg.ParentID = parent
	require.NoError(t, k.ch.Send(k.ctx, msg))
}

// connectedModel 创建已连接到进程内内核的模型
func connectedModel(t *testing.T, initial statetree.Mapping, cfg Config, opts ...Option) (*Model, *kernelEnd) {
	t.Helper()
	ctx := context.Background()
	kernel, frontend := channel.Pipe("k1")
	t.Cleanup(func() {
		_ = frontend.Close()
		_ = kernel.Close()
	})

	kch := make(chan pkgif.Channel, 1)
	in := make(chan *pkgif.Message, 32)
	_, err := kernel.RegisterTarget("jupyter.widget", func(ch pkgif.Channel, _ *pkgif.Message) {
		ch.OnMessage(func(m *pkgif.Message) { in <- m })
		kch <- ch
	})
	require.NoError(t, err)

	m := New("", testClass, initial, cfg, opts...)
	fch, err := frontend.OpenChannel(ctx, "jupyter.widget", m.ID(), nil)
	require.NoError(t, err)
	require.NoError(t, m.Attach(fch))

	var k *kernelEnd
	select {
	case ch := <-kch:
		k = &kernelEnd{ch: ch, in: in, ctx: ctx}
	case <-time.After(2 * time.Second):
		t.Fatal("kernel never saw the comm")
	}
	return m, k
}

func waitFuture(t *testing.T, m *Model, partial statetree.Mapping, opts pkgif.SetOptions) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := m.Set(partial, opts).Wait(ctx)
	return err
}

// ============================================================================
//                              本地状态
// ============================================================================

func TestSet_DisconnectedResolvesImmediately(t *testing.T) {
	m := New("m1", testClass, statetree.Mapping{"value": statetree.Int(0)}, Config{})

	changes := make(chan statetree.Mapping, 4)
	m.OnStateChange(func(_ pkgif.StateStore, changed statetree.Mapping) { changes <- changed })

	f := m.Set(statetree.Mapping{"value": statetree.Int(1), "label": statetree.String("x")}, pkgif.SetOptions{})
	assert.True(t, f.IsDone())
	_, err := f.Result()
	require.NoError(t, err)

	got := <-changes
	assert.ElementsMatch(t, []string{"label", "value"}, got.Keys())

	v, ok := m.Get("value")
	require.True(t, ok)
	assert.True(t, statetree.Equal(statetree.Int(1), v))
	assert.False(t, m.Connected())

	// 相同值不触发通知
	m.Set(statetree.Mapping{"value": statetree.Int(1)}, pkgif.SetOptions{})
	require.NoError(t, m.Settle(context.Background()))
	assert.Empty(t, changes)
}

func TestSet_NotificationsInApplyOrder(t *testing.T) {
	m := New("m1", testClass, nil, Config{})

	var (
		mu  sync.Mutex
		got []int64
	)
	m.OnStateChange(func(s pkgif.StateStore, changed statetree.Mapping) {
		v, _ := changed["n"].(statetree.Scalar).AsInt()
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		// 监听者内部的 set 排在后面
		if v == 1 {
			s.Set(statetree.Mapping{"n": statetree.Int(100)}, pkgif.SetOptions{})
		}
	})

	for i := int64(1); i <= 5; i++ {
		m.Set(statetree.Mapping{"n": statetree.Int(i)}, pkgif.SetOptions{})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 6
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 100}, got)
	v, _ := m.Get("n")
	assert.True(t, statetree.Equal(statetree.Int(100), v))
}

func TestSetValues(t *testing.T) {
	m := New("m1", testClass, nil, Config{})

	_, err := m.SetValues(map[string]any{"pts": []float32{1, 2}, "n": 3}, pkgif.SetOptions{}).Result()
	require.NoError(t, err)
	pts, _ := m.Get("pts")
	assert.Equal(t, statetree.KindBuffer, pts.Kind())

	_, err = m.SetValues(map[string]any{"ch": make(chan int)}, pkgif.SetOptions{}).Result()
	assert.ErrorIs(t, err, statetree.ErrSerialization)
	_, ok := m.Get("ch")
	assert.False(t, ok)
}

func TestHandles_Unregister(t *testing.T) {
	m := New("m1", testClass, nil, Config{})
	calls := 0
	h := m.OnStateChange(func(pkgif.StateStore, statetree.Mapping) { calls++ })
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	m.Set(statetree.Mapping{"a": statetree.Int(1)}, pkgif.SetOptions{})
	require.NoError(t, m.Settle(context.Background()))
	assert.Zero(t, calls)
}

// ============================================================================
//                              同步
// ============================================================================

func TestSet_SyncsThroughCodec(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})
	assert.True(t, m.Connected())

	err := waitFuture(t, m, statetree.Mapping{
		"value": statetree.Int(5),
		"img":   statetree.Mapping{"data": statetree.Bytes([]byte("png"))},
	}, pkgif.SetOptions{})
	require.NoError(t, err)

	msg := k.recv(t)
	upd, err := wire.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, wire.MethodUpdate, upd.Method)
	require.Len(t, msg.Buffers, 1)
	assert.Equal(t, []byte("png"), msg.Buffers[0].Data)
	assert.True(t, statetree.Equal(statetree.Mapping{
		"value": statetree.Int(5),
		"img":   statetree.Mapping{"data": statetree.Bytes([]byte("png"))},
	}, upd.State))

	// 缓冲区留在本地状态中
	img, _ := m.Get("img")
	assert.Equal(t, statetree.KindBuffer, img.(statetree.Mapping)["data"].Kind())
}

func TestSet_NoSyncAndRemoteOriginDoNotSend(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})

	require.NoError(t, waitFuture(t, m, statetree.Mapping{"a": statetree.Int(1)}, pkgif.SetOptions{NoSync: true}))
	require.NoError(t, waitFuture(t, m, statetree.Mapping{"b": statetree.Int(1)}, pkgif.SetOptions{Origin: types.OriginRemote}))
	k.expectNothing(t)

	a, _ := m.Get("a")
	assert.True(t, statetree.Equal(statetree.Int(1), a))
}

func TestSet_SendsInFIFOOrder(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})

	for i := int64(0); i < 10; i++ {
		m.Set(statetree.Mapping{"n": statetree.Int(i)}, pkgif.SetOptions{})
	}
	require.NoError(t, m.Flush(context.Background()))

	for i := int64(0); i < 10; i++ {
		upd, err := wire.Decode(k.recv(t))
		require.NoError(t, err)
		n, _ := upd.State["n"].(statetree.Scalar).AsInt()
		assert.Equal(t, i, n)
	}
}

// ============================================================================
//                              入站
// ============================================================================

func TestRemoteUpdate_AppliedWithoutResync(t *testing.T) {
	m, k := connectedModel(t, nil, Config{SuppressEcho: true})

	changes := make(chan statetree.Mapping, 1)
	m.OnStateChange(func(_ pkgif.StateStore, changed statetree.Mapping) { changes <- changed })

	k.send(t, wire.MethodUpdate, statetree.Mapping{"value": statetree.Int(9)}, "")
	select {
	case c := <-changes:
		assert.True(t, statetree.Equal(statetree.Int(9), c["value"]))
	case <-time.After(2 * time.Second):
		t.Fatal("remote update not applied")
	}
	k.expectNothing(t)
}

func TestEchoSuppression(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})

	changes := make(chan statetree.Mapping, 8)
	m.OnStateChange(func(_ pkgif.StateStore, changed statetree.Mapping) { changes <- changed })

	// 连续两次本地写
	require.NoError(t, waitFuture(t, m, statetree.Mapping{"value": statetree.Int(2)}, pkgif.SetOptions{SuppressEcho: true}))
	first := k.recv(t)
	require.NoError(t, waitFuture(t, m, statetree.Mapping{"value": statetree.Int(3)}, pkgif.SetOptions{SuppressEcho: true}))
	second := k.recv(t)
	<-changes
	<-changes
	assert.Equal(t, 1, m.PendingEchoes())

	// 旧回声被丢弃，记录保留
	k.send(t, wire.MethodEchoUpdate, statetree.Mapping{"value": statetree.Int(2), "other": statetree.Int(1)}, first.ID)
	select {
	case c := <-changes:
		assert.Equal(t, []string{"other"}, c.Keys())
	case <-time.After(2 * time.Second):
		t.Fatal("echo not processed")
	}
	v, _ := m.Get("value")
	assert.True(t, statetree.Equal(statetree.Int(3), v))
	assert.Equal(t, 1, m.PendingEchoes())

	// 最新回声清除记录，也不重复应用
	k.send(t, wire.MethodEchoUpdate, statetree.Mapping{"value": statetree.Int(3)}, second.ID)
	require.Eventually(t, func() bool { return m.PendingEchoes() == 0 }, 2*time.Second, 5*time.Millisecond)

	// 之后的回声正常应用
	k.send(t, wire.MethodEchoUpdate, statetree.Mapping{"value": statetree.Int(7)}, "from-another-frontend")
	select {
	case c := <-changes:
		assert.True(t, statetree.Equal(statetree.Int(7), c["value"]))
	case <-time.After(2 * time.Second):
		t.Fatal("foreign echo not applied")
	}
}

func TestRequestState_RepliesWithFullState(t *testing.T) {
	initial := statetree.Mapping{
		"value": statetree.Int(1),
		"blob":  statetree.Bytes([]byte("b")),
	}
	m, k := connectedModel(t, initial, Config{})

	require.NoError(t, k.ch.Send(k.ctx, wire.EncodeRequestState()))
	upd, err := wire.Decode(k.recv(t))
	require.NoError(t, err)
	assert.True(t, statetree.Equal(initial, upd.State))
	_ = m
}

func TestCustomMessages(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})

	got := make(chan statetree.Mapping, 1)
	m.OnCustomMessage(func(_ pkgif.StateStore, content statetree.Mapping, buffers []statetree.Buffer) {
		assert.Len(t, buffers, 1)
		got <- content
	})
	msg, err := wire.EncodeCustom(statetree.Mapping{"event": statetree.String("click")}, []statetree.Buffer{statetree.Bytes([]byte{1})})
	require.NoError(t, err)
	require.NoError(t, k.ch.Send(k.ctx, msg))

	select {
	case c := <-got:
		ev, _ := c.GetString("event")
		assert.Equal(t, "click", ev)
	case <-time.After(2 * time.Second):
		t.Fatal("custom message not delivered")
	}

	require.NoError(t, m.Send(context.Background(), statetree.Mapping{"ping": statetree.Bool(true)}, nil))
	upd, err := wire.Decode(k.recv(t))
	require.NoError(t, err)
	assert.Equal(t, wire.MethodCustom, upd.Method)
}

// ============================================================================
//                              连接与关闭
// ============================================================================

func TestRemoteClose_FlipsConnectedOnce(t *testing.T) {
	closed := make(chan *Model, 1)
	m, k := connectedModel(t, nil, Config{}, WithOnClosed(func(m *Model) { closed <- m }))

	require.NoError(t, m.Settle(context.Background()))
	flips := make(chan bool, 4)
	m.OnConnectedChange(func(_ pkgif.StateStore, c bool) { flips <- c })

	require.NoError(t, k.ch.Close(k.ctx, nil))
	select {
	case got := <-closed:
		assert.Equal(t, m, got)
	case <-time.After(2 * time.Second):
		t.Fatal("onClosed not called")
	}
	require.NoError(t, m.Settle(context.Background()))
	assert.Equal(t, false, <-flips)
	assert.Empty(t, flips)
	assert.False(t, m.Connected())

	// 断开后 set 立即完成，不发送
	f := m.Set(statetree.Mapping{"x": statetree.Int(1)}, pkgif.SetOptions{})
	assert.True(t, f.IsDone())
	assert.ErrorIs(t, m.Send(context.Background(), statetree.Mapping{}, nil), ErrNotConnected)
}

func TestClose_FlushesThenClosesChannel(t *testing.T) {
	m, k := connectedModel(t, nil, Config{})

	kclosed := make(chan struct{})
	k.ch.OnClose(func(*pkgif.Message) { close(kclosed) })

	m.Set(statetree.Mapping{"last": statetree.Int(1)}, pkgif.SetOptions{})
	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	upd, err := wire.Decode(k.recv(t))
	require.NoError(t, err)
	assert.Contains(t, upd.State, "last")

	select {
	case <-kclosed:
	case <-time.After(2 * time.Second):
		t.Fatal("kernel side not closed")
	}
	assert.True(t, m.Closed())

	_, err = m.Set(statetree.Mapping{"x": statetree.Int(1)}, pkgif.SetOptions{}).Result()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Attach(k.ch), ErrClosed)
}

func TestNewView(t *testing.T) {
	m := New("m1", testClass, statetree.Mapping{wire.KeyViewName: statetree.String("IntSliderView")}, Config{})
	v := m.NewView("")
	assert.Equal(t, "IntSliderView", v.Class)
	assert.Equal(t, types.ModelID("m1"), v.Model)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "Other", m.NewView("Other").Class)
}
