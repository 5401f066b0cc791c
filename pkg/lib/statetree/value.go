package statetree

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// ============================================================================
//                              Kind / Value
// ============================================================================

// Kind 节点类型标签
type Kind uint8

const (
	// KindScalar 标量（null/bool/number/string）
	KindScalar Kind = iota
	// KindMapping 映射
	KindMapping
	// KindSequence 序列
	KindSequence
	// KindBuffer 二进制缓冲区
	KindBuffer
)

// String 返回类型名
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Value 状态树节点
//
// 只有本包定义的四种类型实现 Value。nil 接口值按 null 处理。
type Value interface {
	Kind() Kind
	isValue()
}

// KindOf 返回节点类型，nil 视为标量 null
func KindOf(v Value) Kind {
	if v == nil {
		return KindScalar
	}
	return v.Kind()
}

// ============================================================================
//                              Scalar
// ============================================================================

// Scalar 标量节点
//
// 内部只保存 nil、bool、string、json.Number 四种形态。
type Scalar struct {
	v any
}

// Kind 实现 Value
func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) isValue()   {}

// Null 返回 null 标量
func Null() Scalar { return Scalar{} }

// Bool 返回布尔标量
func Bool(b bool) Scalar { return Scalar{v: b} }

// String 返回字符串标量
func String(s string) Scalar { return Scalar{v: s} }

// Int 返回整数标量
func Int(i int64) Scalar { return Scalar{v: json.Number(strconv.FormatInt(i, 10))} }

// Float 返回浮点标量
func Float(f float64) Scalar { return Scalar{v: json.Number(strconv.FormatFloat(f, 'g', -1, 64))} }

// Number 返回数字标量
func Number(n json.Number) Scalar { return Scalar{v: n} }

// IsNull 是否为 null
func (s Scalar) IsNull() bool { return s.v == nil }

// Interface 返回底层值（nil / bool / string / json.Number）
func (s Scalar) Interface() any { return s.v }

// AsBool 以布尔读取
func (s Scalar) AsBool() (bool, bool) {
	b, ok := s.v.(bool)
	return b, ok
}

// AsString 以字符串读取
func (s Scalar) AsString() (string, bool) {
	str, ok := s.v.(string)
	return str, ok
}

// AsFloat 以浮点读取
func (s Scalar) AsFloat() (float64, bool) {
	n, ok := s.v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

// AsInt 以整数读取
func (s Scalar) AsInt() (int64, bool) {
	n, ok := s.v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// ============================================================================
//                              Mapping / Sequence
// ============================================================================

// Mapping 映射节点
type Mapping map[string]Value

// Kind 实现 Value
func (Mapping) Kind() Kind { return KindMapping }
func (Mapping) isValue()   {}

// Keys 返回排序后的键（即遍历顺序）
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString 读取字符串属性
func (m Mapping) GetString(key string) (string, bool) {
	s, ok := m[key].(Scalar)
	if !ok {
		return "", false
	}
	return s.AsString()
}

// Sequence 序列节点
type Sequence []Value

// Kind 实现 Value
func (Sequence) Kind() Kind { return KindSequence }
func (Sequence) isValue()   {}

// ============================================================================
//                              Buffer
// ============================================================================

// Buffer 二进制缓冲区节点
//
// View 记录类型视图（如 "float32"），为空表示原始字节。
type Buffer struct {
	Data []byte
	View string
}

// Kind 实现 Value
func (Buffer) Kind() Kind { return KindBuffer }
func (Buffer) isValue()   {}

// Bytes 创建原始字节缓冲区
func Bytes(b []byte) Buffer { return Buffer{Data: b} }

// Len 返回字节长度
func (b Buffer) Len() int { return len(b.Data) }

// ============================================================================
//                              比较与复制
// ============================================================================

// Equal 深度比较两棵树
//
// 数字按数值比较，缓冲区按字节与视图比较，nil 与 null 相等，
// nil 映射/序列与空映射/序列相等。
func Equal(a, b Value) bool {
	if a == nil {
		a = Null()
	}
	if b == nil {
		b = Null()
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Scalar:
		return scalarEqual(x, b.(Scalar))
	case Mapping:
		y := b.(Mapping)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Sequence:
		y := b.(Sequence)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Buffer:
		y := b.(Buffer)
		return x.View == y.View && bytes.Equal(x.Data, y.Data)
	}
	return false
}

func scalarEqual(a, b Scalar) bool {
	switch x := a.v.(type) {
	case nil:
		return b.v == nil
	case bool:
		y, ok := b.v.(bool)
		return ok && x == y
	case string:
		y, ok := b.v.(string)
		return ok && x == y
	case json.Number:
		y, ok := b.v.(json.Number)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		xf, err1 := x.Float64()
		yf, err2 := y.Float64()
		return err1 == nil && err2 == nil && xf == yf
	}
	return false
}

// Clone 深度复制（缓冲区字节也会复制）
func Clone(v Value) Value {
	switch x := v.(type) {
	case Mapping:
		if x == nil {
			return Mapping(nil)
		}
		out := make(Mapping, len(x))
		for k, val := range x {
			out[k] = Clone(val)
		}
		return out
	case Sequence:
		if x == nil {
			return Sequence(nil)
		}
		out := make(Sequence, len(x))
		for i, val := range x {
			out[i] = Clone(val)
		}
		return out
	case Buffer:
		return Buffer{Data: bytes.Clone(x.Data), View: x.View}
	default:
		return v
	}
}

// CloneMapping 深度复制映射
func CloneMapping(m Mapping) Mapping {
	if m == nil {
		return Mapping{}
	}
	return Clone(m).(Mapping)
}

// Merge 以 partial 的顶层键覆盖 dst，返回新映射（两者都不修改）
func Merge(dst, partial Mapping) Mapping {
	out := make(Mapping, len(dst)+len(partial))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Changed 返回 partial 中与 current 取值不同的键
func Changed(current, partial Mapping) Mapping {
	out := make(Mapping, len(partial))
	for k, v := range partial {
		if old, ok := current[k]; ok && Equal(old, v) {
			continue
		}
		out[k] = v
	}
	return out
}
