package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// MockRenderHost 模拟 RenderHost 接口实现
type MockRenderHost struct {
	mu sync.Mutex

	// 可覆盖的方法
	AttachFunc func(ctx context.Context, view types.View, mount string) error

	// 调用记录
	Attached map[string]types.View

	removed map[uint64]interfaces.ViewRemovedFunc
	nextID  uint64
}

// NewMockRenderHost 创建 MockRenderHost
func NewMockRenderHost() *MockRenderHost {
	return &MockRenderHost{
		Attached: make(map[string]types.View),
		removed:  make(map[uint64]interfaces.ViewRemovedFunc),
	}
}

// Attach 记录挂载
func (m *MockRenderHost) Attach(ctx context.Context, view types.View, mount string) error {
	if m.AttachFunc != nil {
		if err := m.AttachFunc(ctx, view, mount); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Attached[mount] = view
	m.mu.Unlock()
	return nil
}

// OnViewRemoved 注册视图移除通知
func (m *MockRenderHost) OnViewRemoved(fn interfaces.ViewRemovedFunc) interfaces.Handle {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.removed[id] = fn
	m.mu.Unlock()
	return interfaces.HandleFunc(func() {
		m.mu.Lock()
		delete(m.removed, id)
		m.mu.Unlock()
	})
}

// Remove 模拟宿主移除挂载点上的视图
func (m *MockRenderHost) Remove(mount string) {
	m.mu.Lock()
	view, ok := m.Attached[mount]
	delete(m.Attached, mount)
	fns := make([]interfaces.ViewRemovedFunc, 0, len(m.removed))
	for _, fn := range m.removed {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range fns {
		fn(view)
	}
}

// View 返回挂载点上的视图
func (m *MockRenderHost) View(mount string) (types.View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Attached[mount]
	return v, ok
}

// Subscribers 当前的移除通知订阅数
func (m *MockRenderHost) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.removed)
}

var _ interfaces.RenderHost = (*MockRenderHost)(nil)
