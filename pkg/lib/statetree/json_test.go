package statetree

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	s := Mapping{
		"a": Int(1),
		"b": Sequence{Null(), Bool(true), String("x")},
		"c": Float(1.5),
	}

	data, err := Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":[null,true,"x"],"c":1.5}`, string(data))

	// 作为 json.Marshaler 嵌入普通结构
	wrapped, err := json.Marshal(struct {
		State Mapping `json:"state"`
	}{State: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"a":1,"b":[null,true,"x"],"c":1.5}}`, string(wrapped))
}

func TestMarshal_RejectsBuffer(t *testing.T) {
	_, err := Marshal(Mapping{"x": Sequence{buf("b")}})
	require.ErrorIs(t, err, ErrBufferInJSON)
	assert.Contains(t, err.Error(), "[x 0]")
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"n": 12345678901234567890, "f": 0.1, "s": "x", "z": null, "l": [1, {"k": false}]}`))
	require.NoError(t, err)

	m := v.(Mapping)
	n, ok := m["n"].(Scalar)
	require.True(t, ok)
	assert.Equal(t, json.Number("12345678901234567890"), n.Interface())

	f, ok := m["f"].(Scalar).AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 0.1, f, 1e-12)
	assert.True(t, m["z"].(Scalar).IsNull())
	assert.Equal(t, KindSequence, m["l"].Kind())
}

func TestParseMapping_RejectsNonObject(t *testing.T) {
	_, err := ParseMapping([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotMapping)
}

func TestEqual_NumbersCompareNumerically(t *testing.T) {
	assert.True(t, Equal(Int(1), Number("1.0")))
	assert.True(t, Equal(nil, Null()))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Bytes([]byte("a")), Buffer{Data: []byte("a"), View: "uint8"}))
}

func TestPathJSON(t *testing.T) {
	p := MustPath("c", 1, "k")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `["c",1,"k"]`, string(data))

	var back Path
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Equal(back))

	assert.ErrorIs(t, json.Unmarshal([]byte(`["a",-1]`), &back), ErrInvalidPath)
	assert.ErrorIs(t, json.Unmarshal([]byte(`["a",true]`), &back), ErrInvalidPath)
}

func TestMergeAndChanged(t *testing.T) {
	cur := Mapping{"a": Int(1), "b": String("x")}
	partial := Mapping{"a": Int(1), "b": String("y"), "c": Bool(true)}

	merged := Merge(cur, partial)
	assert.True(t, Equal(Mapping{"a": Int(1), "b": String("y"), "c": Bool(true)}, merged))
	assert.Len(t, cur, 2)

	changed := Changed(cur, partial)
	assert.Equal(t, []string{"b", "c"}, changed.Keys())
}

// ============================================================================
//                              FromGo
// ============================================================================

type point struct {
	X int    `json:"x"`
	Y int    `json:"y"`
	L string `json:"label,omitempty"`
}

func TestFromGo(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]any{
		"bytes":  []byte{1, 2},
		"floats": []float32{1, 2},
		"when":   ts,
		"pt":     point{X: 1, Y: 2},
		"list":   []any{1, "two", nil},
		"nested": map[string]int{"k": 3},
		"ptr":    &point{X: 5},
	}

	v, err := FromGo(in)
	require.NoError(t, err)
	m := v.(Mapping)

	assert.Equal(t, Bytes([]byte{1, 2}), m["bytes"])
	fb := m["floats"].(Buffer)
	assert.Equal(t, "float32", fb.View)
	floats, ok := fb.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, floats)

	when, _ := m["when"].(Scalar).AsString()
	assert.Equal(t, "2024-05-01T12:00:00Z", when)
	assert.True(t, Equal(Mapping{"x": Int(1), "y": Int(2)}, m["pt"]))
	assert.True(t, Equal(Sequence{Int(1), String("two"), Null()}, m["list"]))
	assert.True(t, Equal(Mapping{"k": Int(3)}, m["nested"]))
	assert.True(t, Equal(Mapping{"x": Int(5), "y": Int(0)}, m["ptr"]))
}

type celsius float64

func TestConverterRegistry_ExplicitRegistration(t *testing.T) {
	r := NewConverterRegistry()
	r.Register(reflect.TypeOf(celsius(0)), func(v any) (Value, error) {
		return Mapping{"unit": String("C"), "value": Float(float64(v.(celsius)))}, nil
	})

	v, err := r.FromGo(map[string]any{"temp": celsius(21.5)})
	require.NoError(t, err)
	assert.True(t, Equal(
		Mapping{"temp": Mapping{"unit": String("C"), "value": Float(21.5)}},
		v,
	))

	// 未登记时按底层种类转换
	plain, err := NewConverterRegistry().FromGo(celsius(21.5))
	require.NoError(t, err)
	assert.True(t, Equal(Float(21.5), plain))
}

func TestFromGo_Unsupported(t *testing.T) {
	_, err := FromGo(map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
