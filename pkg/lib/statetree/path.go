package statetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment 路径段：映射键或序列下标
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeySegment 创建键路径段
func KeySegment(k string) Segment { return Segment{Key: k} }

// IndexSegment 创建下标路径段
func IndexSegment(i int) Segment { return Segment{Index: i, IsIndex: true} }

// String 返回路径段文本
func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path 缓冲区在状态树中的位置
//
// JSON 形式为字符串与整数混合的数组，如 ["b","data"]、["c",1]。
type Path []Segment

// NewPath 由字符串与整数构造路径
func NewPath(elems ...any) (Path, error) {
	p := make(Path, 0, len(elems))
	for _, e := range elems {
		switch x := e.(type) {
		case string:
			p = append(p, KeySegment(x))
		case int:
			if x < 0 {
				return nil, fmt.Errorf("%w: negative index %d", ErrInvalidPath, x)
			}
			p = append(p, IndexSegment(x))
		case json.Number:
			i, err := strconv.Atoi(x.String())
			if err != nil || i < 0 {
				return nil, fmt.Errorf("%w: index %q", ErrInvalidPath, x)
			}
			p = append(p, IndexSegment(i))
		case float64:
			if x < 0 || x != float64(int(x)) {
				return nil, fmt.Errorf("%w: index %v", ErrInvalidPath, x)
			}
			p = append(p, IndexSegment(int(x)))
		default:
			return nil, fmt.Errorf("%w: segment of type %T", ErrInvalidPath, e)
		}
	}
	return p, nil
}

// MustPath 同 NewPath，出错时 panic（测试与常量用）
func MustPath(elems ...any) Path {
	p, err := NewPath(elems...)
	if err != nil {
		panic(err)
	}
	return p
}

// Child 返回追加一段后的新路径（不与原路径共享底层数组）
func (p Path) Child(s Segment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = s
	return out
}

// Equal 比较两条路径
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String 返回可读形式，如 [b data] / [c 1]
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// MarshalJSON 实现 json.Marshaler
func (p Path) MarshalJSON() ([]byte, error) {
	elems := make([]any, len(p))
	for i, s := range p {
		if s.IsIndex {
			elems[i] = s.Index
		} else {
			elems[i] = s.Key
		}
	}
	return json.Marshal(elems)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (p *Path) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	parsed, err := NewPath(elems...)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
