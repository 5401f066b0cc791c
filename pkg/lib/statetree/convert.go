package statetree

import (
	"encoding"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"
)

// ============================================================================
//                              转换注册表
// ============================================================================

// ConverterFunc 把某个 Go 类型转换为状态树节点（即“规范的朴素形式”）
type ConverterFunc func(v any) (Value, error)

// ConverterRegistry 按具体类型登记的转换函数
//
// 转换在二进制检查之前应用于每个节点，不做鸭子类型探测。
type ConverterRegistry struct {
	mu    sync.RWMutex
	funcs map[reflect.Type]ConverterFunc
}

// NewConverterRegistry 创建带默认转换的注册表
func NewConverterRegistry() *ConverterRegistry {
	r := &ConverterRegistry{funcs: make(map[reflect.Type]ConverterFunc)}
	r.Register(reflect.TypeOf(time.Time{}), convertTime)
	r.Register(reflect.TypeOf(time.Duration(0)), convertDuration)
	r.Register(reflect.TypeOf([]float32(nil)), typedView("float32"))
	r.Register(reflect.TypeOf([]float64(nil)), typedView("float64"))
	r.Register(reflect.TypeOf([]int8(nil)), typedView("int8"))
	r.Register(reflect.TypeOf([]int16(nil)), typedView("int16"))
	r.Register(reflect.TypeOf([]int32(nil)), typedView("int32"))
	r.Register(reflect.TypeOf([]int64(nil)), typedView("int64"))
	r.Register(reflect.TypeOf([]uint16(nil)), typedView("uint16"))
	r.Register(reflect.TypeOf([]uint32(nil)), typedView("uint32"))
	r.Register(reflect.TypeOf([]uint64(nil)), typedView("uint64"))
	return r
}

// Register 登记（或替换）某个类型的转换函数
func (r *ConverterRegistry) Register(t reflect.Type, fn ConverterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[t] = fn
}

// Unregister 移除转换函数
func (r *ConverterRegistry) Unregister(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, t)
}

func (r *ConverterRegistry) lookup(t reflect.Type) (ConverterFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[t]
	return fn, ok
}

var defaultConverters = NewConverterRegistry()

// DefaultConverters 返回包级默认注册表
func DefaultConverters() *ConverterRegistry {
	return defaultConverters
}

// RegisterConverter 在默认注册表中登记转换函数
func RegisterConverter(t reflect.Type, fn ConverterFunc) {
	defaultConverters.Register(t, fn)
}

// FromGo 使用默认注册表转换任意 Go 值
func FromGo(v any) (Value, error) {
	return defaultConverters.FromGo(v)
}

// ============================================================================
//                              转换
// ============================================================================

// FromGo 把 Go 值转换为状态树
//
// 顺序：已是 Value 的节点原样保留；登记的转换优先；[]byte 视为缓冲区；
// 然后按反射种类处理映射、切片、结构体（经 encoding/json 投影）。
func (r *ConverterRegistry) FromGo(v any) (Value, error) {
	return r.convert(reflect.ValueOf(v), 0)
}

const maxDepth = 256

func (r *ConverterRegistry) convert(rv reflect.Value, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedType, maxDepth)
	}
	if !rv.IsValid() {
		return Null(), nil
	}

	if rv.CanInterface() {
		iv := rv.Interface()
		if val, ok := iv.(Value); ok {
			return val, nil
		}
		if fn, ok := r.lookup(rv.Type()); ok {
			return fn(iv)
		}
		if b, ok := iv.([]byte); ok {
			return Bytes(b), nil
		}
		if n, ok := iv.(json.Number); ok {
			return Number(n), nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return r.convert(rv.Elem(), depth+1)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return FromInterface(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return FromInterface(rv.Float())
	case reflect.Map:
		return r.convertMap(rv, depth)
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		fallthrough
	case reflect.Array:
		out := make(Sequence, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := r.convert(rv.Index(i), depth+1)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = val
		}
		return out, nil
	case reflect.Struct:
		return r.convertViaJSON(rv)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func (r *ConverterRegistry) convertMap(rv reflect.Value, depth int) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	out := make(Mapping, rv.Len())
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	for _, k := range keys {
		name, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		val, err := r.convert(rv.MapIndex(k), depth+1)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprint(k.Interface()), nil
	}
	return "", fmt.Errorf("%w: map key %s", ErrUnsupportedType, k.Type())
}

// convertViaJSON 结构体经 encoding/json 投影（遵守 json 标签），缓冲区不会出现在结果中
func (r *ConverterRegistry) convertViaJSON(rv reflect.Value) (Value, error) {
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedType, rv.Type(), err)
	}
	return Parse(data)
}

// ============================================================================
//                              默认转换
// ============================================================================

func convertTime(v any) (Value, error) {
	return String(v.(time.Time).UTC().Format(time.RFC3339Nano)), nil
}

func convertDuration(v any) (Value, error) {
	return String(v.(time.Duration).String()), nil
}

// typedView 把数值切片编码为小端字节缓冲区，视图名记录元素类型
func typedView(view string) ConverterFunc {
	return func(v any) (Value, error) {
		var data []byte
		switch s := v.(type) {
		case []float32:
			data = make([]byte, 4*len(s))
			for i, f := range s {
				binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(f))
			}
		case []float64:
			data = make([]byte, 8*len(s))
			for i, f := range s {
				binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(f))
			}
		case []int8:
			data = make([]byte, len(s))
			for i, x := range s {
				data[i] = byte(x)
			}
		case []int16:
			data = make([]byte, 2*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint16(data[2*i:], uint16(x))
			}
		case []int32:
			data = make([]byte, 4*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint32(data[4*i:], uint32(x))
			}
		case []int64:
			data = make([]byte, 8*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint64(data[8*i:], uint64(x))
			}
		case []uint16:
			data = make([]byte, 2*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint16(data[2*i:], x)
			}
		case []uint32:
			data = make([]byte, 4*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint32(data[4*i:], x)
			}
		case []uint64:
			data = make([]byte, 8*len(s))
			for i, x := range s {
				binary.LittleEndian.PutUint64(data[8*i:], x)
			}
		default:
			return nil, fmt.Errorf("%w: %T as %s view", ErrUnsupportedType, v, view)
		}
		return Buffer{Data: data, View: view}, nil
	}
}

// Float32s 把 float32 视图缓冲区解码回切片
func (b Buffer) Float32s() ([]float32, bool) {
	if b.View != "float32" || len(b.Data)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(b.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.Data[4*i:]))
	}
	return out, true
}

// Float64s 把 float64 视图缓冲区解码回切片
func (b Buffer) Float64s() ([]float64, bool) {
	if b.View != "float64" || len(b.Data)%8 != 0 {
		return nil, false
	}
	out := make([]float64, len(b.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b.Data[8*i:]))
	}
	return out, true
}
