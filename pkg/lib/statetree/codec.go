package statetree

import (
	"fmt"
	"strconv"
)

// ============================================================================
//                              Extract
// ============================================================================

// Envelope 抽取结果：JSON 安全的状态 + 等长的路径/缓冲区序列
//
// Paths[i] 与 Buffers[i] 共同描述一个被抽出的缓冲区，
// 顺序为首次遇到的遍历顺序。
type Envelope struct {
	State   Value
	Paths   []Path
	Buffers []Buffer
}

// Extract 把状态树中的缓冲区抽出到旁路
//
// 不修改输入；只克隆内容有变化的容器，未触及的子树与输入共享。
// 根节点本身若是缓冲区则原样返回（没有容器可以放置占位）。
func Extract(v Value) Envelope {
	var env Envelope
	out, _ := env.remove(v, nil)
	env.State = out
	return env
}

// ExtractMapping 同 Extract，状态限定为映射
func ExtractMapping(m Mapping) (Mapping, []Path, []Buffer) {
	env := Extract(m)
	out, _ := env.State.(Mapping)
	return out, env.Paths, env.Buffers
}

func (e *Envelope) record(p Path, b Buffer) {
	e.Paths = append(e.Paths, p)
	e.Buffers = append(e.Buffers, b)
}

// remove 返回新节点以及该节点是否被替换
func (e *Envelope) remove(v Value, path Path) (Value, bool) {
	switch n := v.(type) {
	case Mapping:
		return e.removeFromMapping(n, path)
	case Sequence:
		return e.removeFromSequence(n, path)
	default:
		return v, false
	}
}

func (e *Envelope) removeFromMapping(m Mapping, path Path) (Value, bool) {
	out := m
	cloned := false
	clone := func() {
		if !cloned {
			out = make(Mapping, len(m))
			for k, v := range m {
				out[k] = v
			}
			cloned = true
		}
	}

	for _, k := range m.Keys() {
		switch child := m[k].(type) {
		case Buffer:
			clone()
			e.record(path.Child(KeySegment(k)), child)
			delete(out, k)
		case Mapping, Sequence:
			if nv, changed := e.remove(child, path.Child(KeySegment(k))); changed {
				clone()
				out[k] = nv
			}
		}
	}
	return out, cloned
}

func (e *Envelope) removeFromSequence(s Sequence, path Path) (Value, bool) {
	out := s
	cloned := false
	clone := func() {
		if !cloned {
			out = make(Sequence, len(s))
			copy(out, s)
			cloned = true
		}
	}

	for i, v := range s {
		switch child := v.(type) {
		case Buffer:
			clone()
			e.record(path.Child(IndexSegment(i)), child)
			out[i] = Null()
		case Mapping, Sequence:
			if nv, changed := e.remove(child, path.Child(IndexSegment(i))); changed {
				clone()
				out[i] = nv
			}
		}
	}
	return out, cloned
}

// ============================================================================
//                              Inject
// ============================================================================

// Inject 按路径把缓冲区写回状态树（原地修改）
//
// 中间段缺失或不可索引时立即失败，不做恢复；之前已写入的缓冲区不会回滚。
func Inject(v Value, paths []Path, buffers []Buffer) error {
	if len(paths) != len(buffers) {
		return &SerializationError{
			Op:  "inject",
			Err: fmt.Errorf("%w: %d paths, %d buffers", ErrLengthMismatch, len(paths), len(buffers)),
		}
	}

	for i, p := range paths {
		if len(p) == 0 {
			return &SerializationError{Op: "inject", Path: p, Err: ErrEmptyPath}
		}
		parent := v
		for j, seg := range p[:len(p)-1] {
			next, err := child(parent, seg)
			if err != nil {
				return &SerializationError{
					Op:   "inject",
					Path: p,
					Err:  fmt.Errorf("segment %d (%s): %w", j, seg, err),
				}
			}
			parent = next
		}
		if err := assign(parent, p[len(p)-1], buffers[i]); err != nil {
			return &SerializationError{Op: "inject", Path: p, Err: err}
		}
	}
	return nil
}

// child 取下一层节点；映射接受数字段（按十进制键），序列接受数字键
func child(v Value, seg Segment) (Value, error) {
	switch n := v.(type) {
	case Mapping:
		val, ok := n[seg.String()]
		if !ok {
			return nil, ErrPathNotFound
		}
		return val, nil
	case Sequence:
		idx, err := seqIndex(seg)
		if err != nil {
			return nil, err
		}
		if idx >= len(n) {
			return nil, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, len(n))
		}
		return n[idx], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotIndexable, KindOf(v))
	}
}

func assign(v Value, seg Segment, b Buffer) error {
	switch n := v.(type) {
	case Mapping:
		if n == nil {
			return fmt.Errorf("%w: nil mapping", ErrNotIndexable)
		}
		n[seg.String()] = b
		return nil
	case Sequence:
		idx, err := seqIndex(seg)
		if err != nil {
			return err
		}
		if idx >= len(n) {
			return fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, len(n))
		}
		n[idx] = b
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotIndexable, KindOf(v))
	}
}

func seqIndex(seg Segment) (int, error) {
	if seg.IsIndex {
		return seg.Index, nil
	}
	idx, err := strconv.Atoi(seg.Key)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: key %q on sequence", ErrNotIndexable, seg.Key)
	}
	return idx, nil
}
