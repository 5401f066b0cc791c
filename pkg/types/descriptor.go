package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
//                              ClassDescriptor
// ============================================================================

// ClassDescriptor 标识一个可能尚未加载的 widget 类型
type ClassDescriptor struct {
	// Module 模块（包）名，如 "@jupyter-widgets/controls"
	Module string `json:"module"`

	// Version 版本或版本范围，如 "2.0.0"、"^2.0.0"、"*"
	Version string `json:"version"`

	// Class 类名，如 "IntSliderModel"
	Class string `json:"class"`
}

// String 返回 module@version:Class 形式
func (d ClassDescriptor) String() string {
	return fmt.Sprintf("%s@%s:%s", d.Module, d.Version, d.Class)
}

// ModuleKey 返回模块级键（module@version），用于合并同一模块的加载
func (d ClassDescriptor) ModuleKey() string {
	return d.Module + "@" + d.Version
}

// Validate 检查必需字段
func (d ClassDescriptor) Validate() error {
	var missing []string
	if d.Module == "" {
		missing = append(missing, "module")
	}
	if d.Class == "" {
		missing = append(missing, "class")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidDescriptor, strings.Join(missing, ", "))
	}
	return nil
}

// Remote 转换为远程描述符
func (d ClassDescriptor) Remote() RemoteDescriptor {
	return RemoteDescriptor{Package: d.Module, PackageVersion: d.Version, Class: d.Class}
}

// ============================================================================
//                              RemoteDescriptor
// ============================================================================

// RemoteDescriptor 远程类描述符的线上形式
//
//	{"package": "...", "packageVersion": "...", "class": "..."}
type RemoteDescriptor struct {
	Package        string `json:"package"`
	PackageVersion string `json:"packageVersion"`
	Class          string `json:"class"`
}

// Descriptor 转换为 ClassDescriptor
func (r RemoteDescriptor) Descriptor() ClassDescriptor {
	return ClassDescriptor{Module: r.Package, Version: r.PackageVersion, Class: r.Class}
}

// ParseRemoteDescriptor 解析远程描述符 JSON
func ParseRemoteDescriptor(data []byte) (ClassDescriptor, error) {
	var r RemoteDescriptor
	if err := json.Unmarshal(data, &r); err != nil {
		return ClassDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	d := r.Descriptor()
	if err := d.Validate(); err != nil {
		return ClassDescriptor{}, err
	}
	return d, nil
}
