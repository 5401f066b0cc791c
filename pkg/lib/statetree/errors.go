package statetree

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              序列化错误
// ============================================================================

var (
	// ErrSerialization 序列化错误（用于 errors.Is 匹配 SerializationError）
	ErrSerialization = errors.New("statetree: serialization error")

	// ErrLengthMismatch 路径与缓冲区数量不一致
	ErrLengthMismatch = errors.New("buffer paths and buffers differ in length")

	// ErrEmptyPath 空路径
	ErrEmptyPath = errors.New("empty buffer path")

	// ErrPathNotFound 路径中间段不存在
	ErrPathNotFound = errors.New("path segment not found")

	// ErrNotIndexable 节点不可索引
	ErrNotIndexable = errors.New("node is not indexable")

	// ErrIndexOutOfRange 序列下标越界
	ErrIndexOutOfRange = errors.New("sequence index out of range")

	// ErrInvalidPath 无效的路径编码
	ErrInvalidPath = errors.New("invalid buffer path")
)

// ============================================================================
//                              JSON / 转换错误
// ============================================================================

var (
	// ErrBufferInJSON JSON 投影中出现缓冲区
	ErrBufferInJSON = errors.New("statetree: binary buffer in JSON projection")

	// ErrUnsupportedType 无法转换的 Go 类型
	ErrUnsupportedType = errors.New("statetree: unsupported type")

	// ErrNotMapping 顶层不是映射
	ErrNotMapping = errors.New("statetree: value is not a mapping")
)

// SerializationError 缓冲区路径注入/抽取失败
//
// 保留原始的索引错误，可通过 errors.Is / errors.As 逐层检查。
type SerializationError struct {
	Op   string
	Path Path
	Err  error
}

// Error 实现 error 接口
func (e *SerializationError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("statetree: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("statetree: %s at %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap 返回底层错误
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is 匹配 ErrSerialization
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}
