package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// MockResolver 模拟 ClassResolver 接口实现
//
// 按 Module/Class 查找 Classes；找不到时返回 Err（默认 nil 类与 nil 错误）。
type MockResolver struct {
	mu sync.Mutex

	// 存储（键为 "module/class"）
	Classes map[string]*interfaces.Class
	Err     error

	// 可覆盖的方法
	ResolveFunc func(ctx context.Context, desc types.ClassDescriptor) (*interfaces.Class, error)

	// 调用记录
	ResolveCalls []types.ClassDescriptor
}

// NewMockResolver 创建 MockResolver
func NewMockResolver() *MockResolver {
	return &MockResolver{Classes: make(map[string]*interfaces.Class)}
}

// Add 登记类；Descriptor 取自参数
func (m *MockResolver) Add(desc types.ClassDescriptor, cls interfaces.Class) {
	cls.Descriptor = desc
	m.mu.Lock()
	m.Classes[desc.Module+"/"+desc.Class] = &cls
	m.mu.Unlock()
}

// Resolve 查找类
func (m *MockResolver) Resolve(ctx context.Context, desc types.ClassDescriptor) (*interfaces.Class, error) {
	m.mu.Lock()
	m.ResolveCalls = append(m.ResolveCalls, desc)
	cls, ok := m.Classes[desc.Module+"/"+desc.Class]
	err := m.Err
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, desc)
	}
	if ok {
		return cls, nil
	}
	return nil, err
}

var _ interfaces.ClassResolver = (*MockResolver)(nil)
