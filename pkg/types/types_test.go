package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "kernel-1", false},
		{"trimmed", "  kernel-2 ", false},
		{"empty", "", true},
		{"blank", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseSessionKey(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptySessionKey)
				return
			}
			require.NoError(t, err)
			assert.False(t, k.IsEmpty())
		})
	}

	assert.Equal(t, "01234567", SessionKey("0123456789abcdef").ShortString())
	assert.Equal(t, "abc", SessionKey("abc").ShortString())
}

func TestNewIDs(t *testing.T) {
	a, b := NewModelID(), NewModelID()
	assert.Len(t, a.String(), 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a.String(), "-")

	assert.NotEqual(t, NewConsumerID(), NewConsumerID())
	assert.Len(t, NewMessageID().String(), 36)
}

func TestClassDescriptor(t *testing.T) {
	d := ClassDescriptor{Module: "@jupyter-widgets/controls", Version: "2.0.0", Class: "IntSliderModel"}
	assert.NoError(t, d.Validate())
	assert.Equal(t, "@jupyter-widgets/controls@2.0.0:IntSliderModel", d.String())
	assert.Equal(t, "@jupyter-widgets/controls@2.0.0", d.ModuleKey())

	err := ClassDescriptor{Version: "1"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), "module, class")
}

func TestRemoteDescriptor(t *testing.T) {
	d, err := ParseRemoteDescriptor([]byte(`{"package":"ipyleaflet","packageVersion":"^0.19","class":"LeafletMapModel"}`))
	require.NoError(t, err)
	assert.Equal(t, ClassDescriptor{Module: "ipyleaflet", Version: "^0.19", Class: "LeafletMapModel"}, d)
	assert.Equal(t, d, d.Remote().Descriptor())

	_, err = ParseRemoteDescriptor([]byte(`{"package":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = ParseRemoteDescriptor([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestEnums(t *testing.T) {
	assert.Equal(t, "constructing", RecordConstructing.String())
	assert.Equal(t, "disposed", RecordDisposed.String())
	assert.Equal(t, "unknown", RecordState(99).String())
	assert.Equal(t, "remote", OriginRemote.String())
}
