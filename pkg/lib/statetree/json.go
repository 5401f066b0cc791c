package statetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
//                              编码
// ============================================================================

// Marshal 把状态树编码为 JSON
//
// 树中不能残留缓冲区（先 Extract），否则返回 ErrBufferInJSON。
func Marshal(v Value) ([]byte, error) {
	plain, err := ToInterface(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

// ToInterface 转换为 encoding/json 可直接编码的 Go 值
func ToInterface(v Value) (any, error) {
	return toInterface(v, nil)
}

func toInterface(v Value, path Path) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Scalar:
		return x.v, nil
	case Mapping:
		out := make(map[string]any, len(x))
		for k, val := range x {
			plain, err := toInterface(val, path.Child(KeySegment(k)))
			if err != nil {
				return nil, err
			}
			out[k] = plain
		}
		return out, nil
	case Sequence:
		out := make([]any, len(x))
		for i, val := range x {
			plain, err := toInterface(val, path.Child(IndexSegment(i)))
			if err != nil {
				return nil, err
			}
			out[i] = plain
		}
		return out, nil
	case Buffer:
		return nil, fmt.Errorf("%w at %s", ErrBufferInJSON, path)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// MarshalJSON 实现 json.Marshaler
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v)
}

// MarshalJSON 实现 json.Marshaler
func (m Mapping) MarshalJSON() ([]byte, error) {
	return Marshal(m)
}

// MarshalJSON 实现 json.Marshaler
func (s Sequence) MarshalJSON() ([]byte, error) {
	return Marshal(s)
}

// MarshalJSON 缓冲区没有 JSON 形式
func (b Buffer) MarshalJSON() ([]byte, error) {
	return nil, ErrBufferInJSON
}

// ============================================================================
//                              解码
// ============================================================================

// Parse 解析 JSON 为状态树（数字保留为 json.Number）
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromInterface(raw)
}

// ParseMapping 解析 JSON 对象
func ParseMapping(data []byte) (Mapping, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Mapping)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotMapping, KindOf(v))
	}
	return m, nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (m *Mapping) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	parsed, err := ParseMapping(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FromInterface 把 encoding/json 形态的 Go 值转换为状态树
//
// 支持 nil、bool、string、数字、json.Number、map[string]any、[]any、
// []byte（转为缓冲区）以及已经是 Value 的节点。
func FromInterface(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return Number(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite number", ErrUnsupportedType)
		}
		return Float(x), nil
	case float32:
		return FromInterface(float64(x))
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(int64(x)), nil
	case uint:
		return Number(json.Number(strconv.FormatUint(uint64(x), 10))), nil
	case uint64:
		return Number(json.Number(strconv.FormatUint(x, 10))), nil
	case uint32:
		return Int(int64(x)), nil
	case []byte:
		return Bytes(x), nil
	case map[string]any:
		out := make(Mapping, len(x))
		for k, val := range x {
			v, err := FromInterface(val)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	case []any:
		out := make(Sequence, len(x))
		for i, val := range x {
			v, err := FromInterface(val)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, raw)
}
