package loader

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              哨兵错误
// ============================================================================

var (
	// ErrClassNotFound 模块中没有请求的类
	ErrClassNotFound = errors.New("loader: class not found")

	// ErrLoadFailed 模块加载失败
	ErrLoadFailed = errors.New("loader: module load failed")

	// ErrNoSource 没有匹配的扩展且远程加载被禁用
	ErrNoSource = errors.New("loader: no extension matches and remote loading is disabled")

	// ErrModuleTooLarge 模块清单超过上限
	ErrModuleTooLarge = errors.New("loader: module manifest too large")

	// ErrHTTPStatus 模块服务返回非 200
	ErrHTTPStatus = errors.New("loader: unexpected http status")

	// ErrModuleMismatch 清单中的模块名与请求不符
	ErrModuleMismatch = errors.New("loader: manifest names a different module")
)

// ============================================================================
//                              注册错误
// ============================================================================

var (
	// ErrInvalidExtension 扩展定义不合法
	ErrInvalidExtension = errors.New("loader: invalid extension")

	// ErrDuplicateExtension 同名同版本的扩展已注册
	ErrDuplicateExtension = errors.New("loader: extension already registered")

	// ErrInvalidRange 版本范围无法解析
	ErrInvalidRange = errors.New("loader: invalid version range")
)

// ============================================================================
//                              类型化错误
// ============================================================================

// ClassNotFoundError 模块已加载但没有导出请求的类
type ClassNotFoundError struct {
	Module  string
	Version string
	Class   string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class %s not found in module %s@%s", e.Class, e.Module, e.Version)
}

// Is 匹配 ErrClassNotFound
func (e *ClassNotFoundError) Is(target error) bool {
	return target == ErrClassNotFound
}

// LoadError 模块无法加载，Err 保留原因链
type LoadError struct {
	Module  string
	Version string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s@%s: %v", e.Module, e.Version, e.Err)
}

// Unwrap 返回原因
func (e *LoadError) Unwrap() error { return e.Err }

// Is 匹配 ErrLoadFailed
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}
