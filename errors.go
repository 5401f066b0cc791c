package widgetsync

import (
	"errors"

	"github.com/dep2p/go-widgetsync/internal/core/loader"
	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/registry"
	"github.com/dep2p/go-widgetsync/internal/core/render"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// Host 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted Host 未启动
	ErrNotStarted = errors.New("host not started")

	// ErrAlreadyStarted Host 已启动
	ErrAlreadyStarted = errors.New("host already started")

	// ErrHostClosed Host 已关闭
	ErrHostClosed = errors.New("host closed")

	// ErrNilSession 未提供会话
	ErrNilSession = errors.New("nil session")

	// ────────────────────────────────────────────────────────────────────────
	// 注册表错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotFound 会话没有管理器
	ErrNotFound = registry.ErrNotFound

	// ErrDisposed 管理器已销毁
	ErrDisposed = registry.ErrDisposed

	// ErrKeyInUse 目标会话标识已被占用
	ErrKeyInUse = registry.ErrKeyInUse

	// ErrEmptySessionKey 空会话标识
	ErrEmptySessionKey = types.ErrEmptySessionKey

	// ────────────────────────────────────────────────────────────────────────
	// 类解析错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrClassNotFound 模块中没有请求的类
	ErrClassNotFound = loader.ErrClassNotFound

	// ErrLoadFailed 模块加载失败
	ErrLoadFailed = loader.ErrLoadFailed

	// ────────────────────────────────────────────────────────────────────────
	// 状态与绑定错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrSerialization 状态树序列化失败（缓冲区路径无效或过期）
	ErrSerialization = statetree.ErrSerialization

	// ErrNoSnapshot 会话没有保存的状态
	ErrNoSnapshot = manager.ErrNoSnapshot

	// ErrBindingInvalid 视图绑定已失效
	ErrBindingInvalid = render.ErrBindingInvalid
)

// 错误类型别名
type (
	// ClassNotFoundError 类不存在（errors.Is(err, ErrClassNotFound)）
	ClassNotFoundError = loader.ClassNotFoundError

	// LoadError 模块加载失败（errors.Is(err, ErrLoadFailed)）
	LoadError = loader.LoadError

	// SerializationError 状态树序列化失败
	SerializationError = statetree.SerializationError
)

// ErrorStack 按深度优先展开错误链，从最外层到根因
//
// 同时展开 Unwrap() error 与 Unwrap() []error（errors.Join、multierr）。
func ErrorStack(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		out = append(out, e)
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
