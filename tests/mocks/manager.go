package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// MockManager 模拟 Manager 接口实现
type MockManager struct {
	mu  sync.Mutex
	key types.SessionKey

	// 可覆盖的方法
	FlushFunc   func(ctx context.Context) error
	DisposeFunc func(ctx context.Context) error

	// 调用记录
	RekeyCalls   []types.SessionKey
	FlushCalls   int
	DisposeCalls int
}

// NewMockManager 创建 MockManager
func NewMockManager(key types.SessionKey) *MockManager {
	return &MockManager{key: key}
}

// Key 当前会话标识
func (m *MockManager) Key() types.SessionKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// Rekey 记录并更新标识
func (m *MockManager) Rekey(key types.SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.RekeyCalls = append(m.RekeyCalls, key)
}

// Flush 记录调用
func (m *MockManager) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.FlushCalls++
	m.mu.Unlock()
	if m.FlushFunc != nil {
		return m.FlushFunc(ctx)
	}
	return nil
}

// Dispose 记录调用
func (m *MockManager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	m.DisposeCalls++
	m.mu.Unlock()
	if m.DisposeFunc != nil {
		return m.DisposeFunc(ctx)
	}
	return nil
}

// Disposed 是否至少销毁过一次
func (m *MockManager) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DisposeCalls > 0
}

// Factory 返回总是产出本 Mock 的工厂
func (m *MockManager) Factory() interfaces.ManagerFactory {
	return func(context.Context, types.SessionKey) (interfaces.Manager, error) {
		return m, nil
	}
}

var _ interfaces.Manager = (*MockManager)(nil)
