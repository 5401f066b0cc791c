package render

import "errors"

var (
	// ErrBindingInvalid 绑定引用的管理器已销毁或视图已移除
	ErrBindingInvalid = errors.New("render: binding invalid")

	// ErrNoHost 未配置渲染宿主
	ErrNoHost = errors.New("render: no render host")

	// ErrClosed 绑定器已关闭
	ErrClosed = errors.New("render: binder closed")
)
