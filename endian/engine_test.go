package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()
	require.Equal(t, binary.LittleEndian, engine)

	buf := engine.AppendUint32(nil, 0x01020304)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf)
	require.Equal(t, uint32(0x01020304), engine.Uint32(buf))
}

func TestUint128RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi uint64
	}{
		{"zero", 0, 0},
		{"low only", 0xdeadbeef, 0},
		{"high only", 0, 1},
		{"max", ^uint64(0), ^uint64(0)},
	}

	engine := GetLittleEndianEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendUint128(engine, nil, tt.lo, tt.hi)
			require.Len(t, buf, 16)

			lo, hi := Uint128(engine, buf)
			require.Equal(t, tt.lo, lo)
			require.Equal(t, tt.hi, hi)
		})
	}
}

func TestUint128ByteLayout(t *testing.T) {
	buf := AppendUint128(GetLittleEndianEngine(), nil, 1, 2)
	require.Equal(t, []byte{
		1, 0, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0,
	}, buf)
}

func TestUint128ShortBufferPanics(t *testing.T) {
	require.Panics(t, func() {
		Uint128(GetLittleEndianEngine(), make([]byte, 15))
	})
}
