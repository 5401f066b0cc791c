package manager

import "errors"

// ============================================================================
//                              生命周期错误
// ============================================================================

var (
	// ErrDisposed 管理器已销毁
	ErrDisposed = errors.New("manager: disposed")

	// ErrNotStarted 管理器尚未启动
	ErrNotStarted = errors.New("manager: not started")

	// ErrNoResolver 未提供类解析器
	ErrNoResolver = errors.New("manager: nil class resolver")

	// ErrNoSession 未提供会话
	ErrNoSession = errors.New("manager: nil session")
)

// ============================================================================
//                              模型错误
// ============================================================================

var (
	// ErrModelNotFound 没有该标识的模型
	ErrModelNotFound = errors.New("manager: model not found")

	// ErrModelExists 同标识的模型已存在
	ErrModelExists = errors.New("manager: model already exists")
)

// ============================================================================
//                              保存状态错误
// ============================================================================

var (
	// ErrUnsupportedVersion 保存状态的主版本不受支持
	ErrUnsupportedVersion = errors.New("manager: unsupported widget state version")

	// ErrBadBuffer 保存状态中的缓冲区无法解码
	ErrBadBuffer = errors.New("manager: bad saved buffer")

	// ErrNoSnapshotStore 未配置快照存储
	ErrNoSnapshotStore = errors.New("manager: no snapshot store")

	// ErrNoSnapshot 会话没有保存的快照
	ErrNoSnapshot = errors.New("manager: no saved snapshot")
)
