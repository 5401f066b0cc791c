package wire

import (
	"fmt"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// ============================================================================
//                              常量
// ============================================================================

// 消息方法
const (
	MethodUpdate       = "update"
	MethodEchoUpdate   = "echo_update"
	MethodRequestState = "request_state"
	MethodCustom       = "custom"
)

// 信封字段
const (
	FieldMethod      = "method"
	FieldState       = "state"
	FieldBufferPaths = "buffer_paths"
	FieldContent     = "content"
)

// 状态中描述模型类与视图类的键
const (
	KeyModelModule        = "_model_module"
	KeyModelModuleVersion = "_model_module_version"
	KeyModelName          = "_model_name"
	KeyViewModule         = "_view_module"
	KeyViewModuleVersion  = "_view_module_version"
	KeyViewName           = "_view_name"
)

// MetadataVersion 元数据中的协议版本键
const MetadataVersion = "version"

// ProtocolVersion 实现的协议版本
const ProtocolVersion = "2.1.0"

// ============================================================================
//                              Update
// ============================================================================

// Update 解码后的一条模型消息
type Update struct {
	// Method 消息方法
	Method string

	// State update / echo_update 的状态（缓冲区已放回）
	State statetree.Mapping

	// Content custom 消息的内容
	Content statetree.Mapping

	// Buffers custom 消息携带的缓冲区
	Buffers []statetree.Buffer
}

// IsState 是否为状态更新（update 或 echo_update）
func (u *Update) IsState() bool {
	return u.Method == MethodUpdate || u.Method == MethodEchoUpdate
}

// ============================================================================
//                              编码
// ============================================================================

// EncodeUpdate 把状态编码为 update/echo_update 消息
//
// 缓冲区被摘到 Message.Buffers；输入状态不会被修改。
func EncodeUpdate(state statetree.Mapping, method string) (*pkgif.Message, error) {
	if method != MethodUpdate && method != MethodEchoUpdate {
		return nil, fmt.Errorf("%w: %q is not a state method", ErrUnknownMethod, method)
	}
	data, buffers, err := encodeState(state)
	if err != nil {
		return nil, err
	}
	data[FieldMethod] = statetree.String(method)
	return &pkgif.Message{
		ID:      types.NewMessageID(),
		Data:    data,
		Buffers: buffers,
	}, nil
}

// EncodeRequestState 构造 request_state 消息
func EncodeRequestState() *pkgif.Message {
	return &pkgif.Message{
		ID:   types.NewMessageID(),
		Data: statetree.Mapping{FieldMethod: statetree.String(MethodRequestState)},
	}
}

// EncodeCustom 构造自定义消息
//
// 内容必须是 JSON 安全的；缓冲区原样旁路传输。
func EncodeCustom(content statetree.Mapping, buffers []statetree.Buffer) (*pkgif.Message, error) {
	if content == nil {
		content = statetree.Mapping{}
	}
	if _, err := statetree.ToInterface(content); err != nil {
		return nil, &statetree.SerializationError{Op: "encode", Err: err}
	}
	return &pkgif.Message{
		ID: types.NewMessageID(),
		Data: statetree.Mapping{
			FieldMethod:  statetree.String(MethodCustom),
			FieldContent: content,
		},
		Buffers: buffers,
	}, nil
}

// EncodeOpen 构造 comm_open 的数据与元数据
func EncodeOpen(state statetree.Mapping, protocolVersion string) (*pkgif.Message, error) {
	data, buffers, err := encodeState(state)
	if err != nil {
		return nil, err
	}
	msg := &pkgif.Message{
		ID:      types.NewMessageID(),
		Data:    data,
		Buffers: buffers,
	}
	if protocolVersion != "" {
		msg.Metadata = map[string]any{MetadataVersion: protocolVersion}
	}
	return msg, nil
}

// encodeState 摘出缓冲区并校验剩余状态 JSON 安全
func encodeState(state statetree.Mapping) (statetree.Mapping, []statetree.Buffer, error) {
	if state == nil {
		state = statetree.Mapping{}
	}
	stripped, paths, buffers := statetree.ExtractMapping(state)
	if _, err := statetree.ToInterface(stripped); err != nil {
		return nil, nil, &statetree.SerializationError{Op: "encode", Err: err}
	}
	encodedPaths := make(statetree.Sequence, len(paths))
	for i, p := range paths {
		encodedPaths[i] = pathValue(p)
	}
	return statetree.Mapping{
		FieldState:       stripped,
		FieldBufferPaths: encodedPaths,
	}, buffers, nil
}

// ============================================================================
//                              解码
// ============================================================================

// Decode 解码模型消息
//
// 状态在放回缓冲区前会被复制，调用方传入的消息保持不变。
func Decode(msg *pkgif.Message) (*Update, error) {
	if msg == nil || msg.Data == nil {
		return nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}
	method, ok := msg.Data.GetString(FieldMethod)
	if !ok {
		return nil, fmt.Errorf("%w: missing method", ErrMalformed)
	}

	switch method {
	case MethodUpdate, MethodEchoUpdate:
		state, err := decodeState(msg.Data, msg.Buffers)
		if err != nil {
			return nil, err
		}
		return &Update{Method: method, State: state}, nil
	case MethodRequestState:
		return &Update{Method: method}, nil
	case MethodCustom:
		content, _ := msg.Data[FieldContent].(statetree.Mapping)
		if content == nil {
			content = statetree.Mapping{}
		}
		return &Update{Method: method, Content: content, Buffers: msg.Buffers}, nil
	}
	logger.Debug("忽略未知方法", "method", method)
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

// DecodeOpen 解码 comm_open 数据中的初始状态
func DecodeOpen(msg *pkgif.Message) (statetree.Mapping, error) {
	if msg == nil || msg.Data == nil {
		return nil, fmt.Errorf("%w: empty open message", ErrMalformed)
	}
	return decodeState(msg.Data, msg.Buffers)
}

func decodeState(data statetree.Mapping, buffers []statetree.Buffer) (statetree.Mapping, error) {
	raw, ok := data[FieldState]
	if !ok {
		return nil, fmt.Errorf("%w: missing state", ErrMalformed)
	}
	state, ok := raw.(statetree.Mapping)
	if !ok {
		return nil, fmt.Errorf("%w: state is %s, want mapping", ErrMalformed, statetree.KindOf(raw))
	}
	paths, err := decodePaths(data[FieldBufferPaths])
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 && len(buffers) == 0 {
		return state, nil
	}
	state = statetree.CloneMapping(state)
	if err := statetree.Inject(state, paths, buffers); err != nil {
		return nil, err
	}
	return state, nil
}

func decodePaths(v statetree.Value) ([]statetree.Path, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(statetree.Scalar); ok && s.IsNull() {
		return nil, nil
	}
	seq, ok := v.(statetree.Sequence)
	if !ok {
		return nil, fmt.Errorf("%w: buffer_paths is %s", ErrMalformed, statetree.KindOf(v))
	}
	paths := make([]statetree.Path, len(seq))
	for i, elem := range seq {
		segs, ok := elem.(statetree.Sequence)
		if !ok {
			return nil, fmt.Errorf("%w: buffer_paths[%d] is %s", ErrMalformed, i, statetree.KindOf(elem))
		}
		raw := make([]any, len(segs))
		for j, seg := range segs {
			sc, ok := seg.(statetree.Scalar)
			if !ok {
				return nil, fmt.Errorf("%w: buffer_paths[%d][%d]", ErrMalformed, i, j)
			}
			raw[j] = sc.Interface()
		}
		p, err := statetree.NewPath(raw...)
		if err != nil {
			return nil, fmt.Errorf("%w: buffer_paths[%d]: %v", ErrMalformed, i, err)
		}
		paths[i] = p
	}
	return paths, nil
}

func pathValue(p statetree.Path) statetree.Sequence {
	out := make(statetree.Sequence, len(p))
	for i, seg := range p {
		if seg.IsIndex {
			out[i] = statetree.Int(int64(seg.Index))
		} else {
			out[i] = statetree.String(seg.Key)
		}
	}
	return out
}

// ============================================================================
//                              类描述
// ============================================================================

// ClassOf 从状态读取模型类描述符
func ClassOf(state statetree.Mapping) (types.ClassDescriptor, error) {
	module, _ := state.GetString(KeyModelModule)
	name, _ := state.GetString(KeyModelName)
	version, _ := state.GetString(KeyModelModuleVersion)
	if module == "" || name == "" {
		return types.ClassDescriptor{}, fmt.Errorf("%w: %s=%q %s=%q",
			ErrMissingClass, KeyModelModule, module, KeyModelName, name)
	}
	if version == "" {
		version = "*"
	}
	return types.ClassDescriptor{Module: module, Version: version, Class: name}, nil
}

// ViewOf 从状态读取视图类名（可能为空）
func ViewOf(state statetree.Mapping) string {
	name, _ := state.GetString(KeyViewName)
	return name
}

// ClassState 把描述符写成状态中的模型类字段
func ClassState(desc types.ClassDescriptor) statetree.Mapping {
	return statetree.Mapping{
		KeyModelModule:        statetree.String(desc.Module),
		KeyModelModuleVersion: statetree.String(desc.Version),
		KeyModelName:          statetree.String(desc.Class),
	}
}
