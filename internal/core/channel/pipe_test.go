package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTarget = "jupyter.widget"

func recvMsg(t *testing.T, ch <-chan *pkgif.Message) *pkgif.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPipe_OpenSendClose(t *testing.T) {
	kernel, frontend := Pipe("k1")
	ctx := context.Background()

	opened := make(chan pkgif.Channel, 1)
	inbound := make(chan *pkgif.Message, 8)
	_, err := frontend.RegisterTarget(testTarget, func(ch pkgif.Channel, msg *pkgif.Message) {
		ch.OnMessage(func(m *pkgif.Message) { inbound <- m })
		inbound <- msg
		opened <- ch
	})
	require.NoError(t, err)

	kch, err := kernel.OpenChannel(ctx, testTarget, "m1", &pkgif.Message{
		Data: statetree.Mapping{"state": statetree.Mapping{}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ModelID("m1"), kch.ID())

	openMsg := recvMsg(t, inbound)
	assert.Contains(t, openMsg.Data, "state")
	fch := <-opened
	assert.Equal(t, types.ModelID("m1"), fch.ID())
	assert.Equal(t, testTarget, fch.Target())

	// 内核 → 前端
	require.NoError(t, kch.Send(ctx, &pkgif.Message{Data: statetree.Mapping{"n": statetree.Int(1)}}))
	m := recvMsg(t, inbound)
	assert.NotEmpty(t, m.ID)

	// 前端 → 内核
	kin := make(chan *pkgif.Message, 1)
	kch.OnMessage(func(m *pkgif.Message) { kin <- m })
	require.NoError(t, fch.Send(ctx, &pkgif.Message{Data: statetree.Mapping{"n": statetree.Int(2)}}))
	recvMsg(t, kin)

	// 关闭通知两端
	kclosed := make(chan *pkgif.Message, 1)
	fclosed := make(chan *pkgif.Message, 1)
	kch.OnClose(func(m *pkgif.Message) { kclosed <- m })
	fch.OnClose(func(m *pkgif.Message) { fclosed <- m })

	require.NoError(t, fch.Close(ctx, nil))
	recvMsg(t, fclosed)
	recvMsg(t, kclosed)
	assert.True(t, kch.Closed())
	assert.ErrorIs(t, fch.Send(ctx, &pkgif.Message{}), ErrChannelClosed)
	assert.NoError(t, fch.Close(ctx, nil))
}

func TestPipe_MessagesCopiedAcrossBoundary(t *testing.T) {
	kernel, frontend := Pipe("k1")
	ctx := context.Background()

	got := make(chan *pkgif.Message, 1)
	_, err := frontend.RegisterTarget(testTarget, func(ch pkgif.Channel, _ *pkgif.Message) {
		ch.OnMessage(func(m *pkgif.Message) { got <- m })
	})
	require.NoError(t, err)

	kch, err := kernel.OpenChannel(ctx, testTarget, "", nil)
	require.NoError(t, err)
	assert.False(t, kch.ID().IsEmpty())

	sent := &pkgif.Message{
		Data:    statetree.Mapping{"k": statetree.String("v")},
		Buffers: []statetree.Buffer{statetree.Bytes([]byte("abc"))},
	}
	require.NoError(t, kch.Send(ctx, sent))
	sent.Data["k"] = statetree.String("mutated")
	sent.Buffers[0].Data[0] = 'X'

	m := recvMsg(t, got)
	v, _ := m.Data.GetString("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, []byte("abc"), m.Buffers[0].Data)
}

func TestPipe_BacklogReplayedOnFirstHandler(t *testing.T) {
	kernel, frontend := Pipe("k1")
	ctx := context.Background()

	opened := make(chan pkgif.Channel, 1)
	_, err := frontend.RegisterTarget(testTarget, func(ch pkgif.Channel, _ *pkgif.Message) {
		opened <- ch
	})
	require.NoError(t, err)

	kch, err := kernel.OpenChannel(ctx, testTarget, "m1", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, kch.Send(ctx, &pkgif.Message{Data: statetree.Mapping{"i": statetree.Int(int64(i))}}))
	}
	fch := <-opened
	require.NoError(t, frontend.Drain(ctx))

	got := make(chan *pkgif.Message, 3)
	fch.OnMessage(func(m *pkgif.Message) { got <- m })
	for i := 0; i < 3; i++ {
		m := recvMsg(t, got)
		n, _ := m.Data["i"].(statetree.Scalar).AsInt()
		assert.Equal(t, int64(i), n)
	}
}

func TestComm_BacklogPrecedesQueuedMessage(t *testing.T) {
	hub := NewHub("k1")
	ctx := context.Background()
	t.Cleanup(func() { _ = hub.Shutdown(ctx, false) })

	c, err := hub.NewComm("m1", testTarget, nil)
	require.NoError(t, err)

	msgOf := func(tag string) *pkgif.Message {
		return &pkgif.Message{Data: statetree.Mapping{"tag": statetree.String(tag)}}
	}

	hub.DispatchMessage("m1", msgOf("first"))
	require.NoError(t, hub.Drain(ctx))

	// 回调注册时 "second" 的分发任务已在会话队列中排队
	gate := make(chan struct{})
	hub.exec.Go(func() { <-gate })
	hub.DispatchMessage("m1", msgOf("second"))

	var mu sync.Mutex
	var order []string
	c.OnMessage(func(m *pkgif.Message) {
		tag, _ := m.Data.GetString("tag")
		mu.Lock()
		order = append(order, tag)
		mu.Unlock()
	})
	close(gate)
	require.NoError(t, hub.Drain(ctx))

	hub.DispatchMessage("m1", msgOf("third"))
	require.NoError(t, hub.Drain(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPipe_UnknownTargetClosesBack(t *testing.T) {
	kernel, _ := Pipe("k1")

	kch, err := kernel.OpenChannel(context.Background(), "nobody", "m1", nil)
	require.NoError(t, err)

	assert.Eventually(t, kch.Closed, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, kernel.CommCount())
}

func TestPipe_ReadyGateAndRekey(t *testing.T) {
	kernel, frontend := Pipe("k1", WithDeferredReady())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, frontend.Ready(ctx), context.DeadlineExceeded)

	kernel.MarkReady()
	require.NoError(t, frontend.Ready(context.Background()))

	changes := make(chan [2]types.SessionKey, 1)
	h := frontend.OnKeyChange(func(old, new types.SessionKey) { changes <- [2]types.SessionKey{old, new} })
	kernel.Rekey("k2")

	select {
	case c := <-changes:
		assert.Equal(t, [2]types.SessionKey{"k1", "k2"}, c)
	case <-time.After(time.Second):
		t.Fatal("no key change")
	}
	assert.Equal(t, types.SessionKey("k2"), frontend.Key())
	assert.Equal(t, types.SessionKey("k2"), kernel.Key())
	require.NoError(t, h.Close())
}

func TestPipe_CloseSession(t *testing.T) {
	kernel, frontend := Pipe("k1")
	ctx := context.Background()

	_, err := frontend.RegisterTarget(testTarget, func(pkgif.Channel, *pkgif.Message) {})
	require.NoError(t, err)
	_, err = frontend.RegisterTarget(testTarget, func(pkgif.Channel, *pkgif.Message) {})
	assert.ErrorIs(t, err, ErrTargetRegistered)

	kch, err := kernel.OpenChannel(ctx, testTarget, "m1", nil)
	require.NoError(t, err)
	require.NoError(t, frontend.Drain(ctx))
	assert.Equal(t, 1, frontend.CommCount())

	closed := make(chan *pkgif.Message, 1)
	kch.OnClose(func(m *pkgif.Message) { closed <- m })
	require.NoError(t, frontend.Close())
	recvMsg(t, closed)

	assert.NoError(t, frontend.Ready(ctx))
	_, err = frontend.OpenChannel(ctx, testTarget, "m2", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, kch.Send(ctx, &pkgif.Message{}), ErrChannelClosed)
}
