package descriptor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestParse(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := Descriptor{ProtocolVersion: 1, DataVersionID: "20240101000000_000"}
		out, err := Parse(in.Marshal())
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("known bytes", func(t *testing.T) {
		// 08 01 12 12 "20240101000000_000"
		data := append([]byte{0x08, 0x01, 0x12, 0x12}, []byte("20240101000000_000")...)
		assert.Equal(t, data, Descriptor{ProtocolVersion: 1, DataVersionID: "20240101000000_000"}.Marshal())

		d, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, 1, d.ProtocolVersion)
	})

	t.Run("unknown fields are skipped", func(t *testing.T) {
		var data []byte
		data = protowire.AppendTag(data, 7, protowire.BytesType)
		data = protowire.AppendString(data, "future")
		data = append(data, Descriptor{ProtocolVersion: 2, DataVersionID: "20240301120000_007"}.Marshal()...)
		data = protowire.AppendTag(data, 9, protowire.Fixed64Type)
		data = protowire.AppendFixed64(data, 42)

		d, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, 2, d.ProtocolVersion)
		assert.Equal(t, "20240301120000_007", d.DataVersionID)
	})

	t.Run("missing protocol version is zero", func(t *testing.T) {
		d, err := Parse(Descriptor{DataVersionID: "20240101000000_000"}.Marshal())
		require.NoError(t, err)
		assert.Equal(t, 0, d.ProtocolVersion)
	})

	failures := map[string][]byte{
		"empty":       nil,
		"garbage":     []byte{0xff, 0xff, 0xff},
		"truncated":   []byte{0x12, 0x12, '2', '0'},
		"no id":       {0x08, 0x01},
		"bad id":      Descriptor{ProtocolVersion: 1, DataVersionID: "2024-01-01"}.Marshal(),
		"invalid day": Descriptor{ProtocolVersion: 1, DataVersionID: "20240231000000_000"}.Marshal(),
	}
	for name, data := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			assert.Error(t, err)
		})
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"20240101000000_000", true},
		{"20991231235959_999", true},
		{"2024010100000_000", false},
		{"20240101000000_00", false},
		{"20240101000000-000", false},
		{"20241301000000_000", false},
		{" 20240101000000_000", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "20240101000000_000", "20240101000000_000", 0},
		{"newer timestamp", "20240102000000_000", "20240101235959_999", 1},
		{"older sequence", "20240101000000_001", "20240101000000_002", -1},
		{"absent local is older", "20240101000000_000", "", 1},
		{"absent remote", "", "20240101000000_000", -1},
		{"both absent", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestDescriptor_Timestamp(t *testing.T) {
	ts, err := Descriptor{DataVersionID: "20240301120530_004"}.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 5, 30, 0, time.UTC), ts)
}
