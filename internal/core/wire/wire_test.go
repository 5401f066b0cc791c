package wire

import (
	"testing"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUpdate_ExtractsBuffers(t *testing.T) {
	state := statetree.Mapping{
		"value": statetree.Int(3),
		"img":   statetree.Mapping{"data": statetree.Bytes([]byte("png"))},
		"pts":   statetree.Sequence{statetree.Int(0), statetree.Bytes([]byte("p"))},
	}

	msg, err := EncodeUpdate(state, MethodUpdate)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	method, _ := msg.Data.GetString(FieldMethod)
	assert.Equal(t, MethodUpdate, method)

	data, err := statetree.Marshal(msg.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"method": "update",
		"state": {"value": 3, "img": {}, "pts": [0, null]},
		"buffer_paths": [["img", "data"], ["pts", 1]]
	}`, string(data))

	require.Len(t, msg.Buffers, 2)
	assert.Equal(t, []byte("png"), msg.Buffers[0].Data)
	assert.Equal(t, []byte("p"), msg.Buffers[1].Data)

	// 输入不变
	assert.Equal(t, statetree.KindBuffer, state["img"].(statetree.Mapping)["data"].Kind())
}

func TestEncodeUpdate_RejectsNonStateMethod(t *testing.T) {
	_, err := EncodeUpdate(statetree.Mapping{}, MethodCustom)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDecode_RoundTrip(t *testing.T) {
	state := statetree.Mapping{
		"a": statetree.Int(1),
		"b": statetree.Mapping{"data": statetree.Bytes([]byte("BUF1"))},
		"c": statetree.Sequence{statetree.Int(0), statetree.Bytes([]byte("BUF2"))},
	}
	msg, err := EncodeUpdate(state, MethodEchoUpdate)
	require.NoError(t, err)

	// 模拟线上传输：JSON 部分重新解析
	raw, err := statetree.Marshal(msg.Data)
	require.NoError(t, err)
	parsed, err := statetree.ParseMapping(raw)
	require.NoError(t, err)

	upd, err := Decode(&pkgif.Message{Data: parsed, Buffers: msg.Buffers})
	require.NoError(t, err)
	assert.Equal(t, MethodEchoUpdate, upd.Method)
	assert.True(t, upd.IsState())
	assert.True(t, statetree.Equal(state, upd.State), "decoded %v", upd.State)
}

func TestDecode_DoesNotMutateMessage(t *testing.T) {
	msg := &pkgif.Message{
		Data: statetree.Mapping{
			FieldMethod:      statetree.String(MethodUpdate),
			FieldState:       statetree.Mapping{"x": statetree.Sequence{statetree.Null()}},
			FieldBufferPaths: statetree.Sequence{statetree.Sequence{statetree.String("x"), statetree.Int(0)}},
		},
		Buffers: []statetree.Buffer{statetree.Bytes([]byte("z"))},
	}

	upd, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, statetree.KindBuffer, upd.State["x"].(statetree.Sequence)[0].Kind())

	orig := msg.Data[FieldState].(statetree.Mapping)["x"].(statetree.Sequence)[0]
	assert.Equal(t, statetree.KindScalar, orig.Kind())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		msg    *pkgif.Message
		target error
	}{
		{"nil message", nil, ErrMalformed},
		{"missing method", &pkgif.Message{Data: statetree.Mapping{}}, ErrMalformed},
		{"unknown method", &pkgif.Message{Data: statetree.Mapping{FieldMethod: statetree.String("display")}}, ErrUnknownMethod},
		{"update without state", &pkgif.Message{Data: statetree.Mapping{FieldMethod: statetree.String(MethodUpdate)}}, ErrMalformed},
		{"state not mapping", &pkgif.Message{Data: statetree.Mapping{
			FieldMethod: statetree.String(MethodUpdate),
			FieldState:  statetree.Sequence{},
		}}, ErrMalformed},
		{"bad buffer path", &pkgif.Message{Data: statetree.Mapping{
			FieldMethod:      statetree.String(MethodUpdate),
			FieldState:       statetree.Mapping{},
			FieldBufferPaths: statetree.Sequence{statetree.String("x")},
		}}, ErrMalformed},
		{"stale buffer path", &pkgif.Message{
			Data: statetree.Mapping{
				FieldMethod:      statetree.String(MethodUpdate),
				FieldState:       statetree.Mapping{},
				FieldBufferPaths: statetree.Sequence{statetree.Sequence{statetree.String("gone"), statetree.Int(0)}},
			},
			Buffers: []statetree.Buffer{statetree.Bytes(nil)},
		}, statetree.ErrSerialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.msg)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestCustomAndRequestState(t *testing.T) {
	msg, err := EncodeCustom(statetree.Mapping{"event": statetree.String("click")}, []statetree.Buffer{statetree.Bytes([]byte{1})})
	require.NoError(t, err)

	upd, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, MethodCustom, upd.Method)
	assert.False(t, upd.IsState())
	v, _ := upd.Content.GetString("event")
	assert.Equal(t, "click", v)
	assert.Len(t, upd.Buffers, 1)

	_, err = EncodeCustom(statetree.Mapping{"b": statetree.Bytes(nil)}, nil)
	assert.ErrorIs(t, err, statetree.ErrSerialization)

	upd, err = Decode(EncodeRequestState())
	require.NoError(t, err)
	assert.Equal(t, MethodRequestState, upd.Method)
}

func TestOpenAndClassOf(t *testing.T) {
	desc := types.ClassDescriptor{Module: "@jupyter-widgets/controls", Version: "2.0.0", Class: "IntSliderModel"}
	state := statetree.Merge(ClassState(desc), statetree.Mapping{
		"value":      statetree.Int(7),
		KeyViewName:  statetree.String("IntSliderView"),
		"background": statetree.Bytes([]byte("bg")),
	})

	msg, err := EncodeOpen(state, "2.1.0")
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", msg.Metadata[MetadataVersion])
	_, hasMethod := msg.Data[FieldMethod]
	assert.False(t, hasMethod)

	back, err := DecodeOpen(msg)
	require.NoError(t, err)
	assert.True(t, statetree.Equal(state, back))

	got, err := ClassOf(back)
	require.NoError(t, err)
	assert.Equal(t, desc, got)
	assert.Equal(t, "IntSliderView", ViewOf(back))
}

func TestClassOf_Missing(t *testing.T) {
	_, err := ClassOf(statetree.Mapping{KeyModelName: statetree.String("X")})
	assert.ErrorIs(t, err, ErrMissingClass)

	d, err := ClassOf(statetree.Mapping{
		KeyModelModule: statetree.String("m"),
		KeyModelName:   statetree.String("X"),
	})
	require.NoError(t, err)
	assert.Equal(t, "*", d.Version)
}
