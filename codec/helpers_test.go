package codec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/wire"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()

	reg, err := NewRegistry(opts...)
	require.NoError(t, err)

	return reg
}

// encodeAs encodes v with its static type T, so interface types stay sums.
func encodeAs[T any](reg *Registry, v T) ([]byte, error) {
	w := wire.NewWriter()
	defer w.Release()

	if err := reg.EncodeValue(w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}

	return bytes.Clone(w.Bytes()), nil
}

func mustEncode[T any](t *testing.T, reg *Registry, v T) []byte {
	t.Helper()

	data, err := encodeAs(reg, v)
	require.NoError(t, err)

	return data
}

func decodeAs[T any](reg *Registry, data []byte) (T, error) {
	var out T
	r := wire.NewReader(data)
	if err := reg.Decode(r, &out); err != nil {
		return out, err
	}
	if r.Remaining() != 0 {
		panic("trailing bytes in test input")
	}

	return out, nil
}

func roundTrip[T any](t *testing.T, reg *Registry, v T) T {
	t.Helper()

	data := mustEncode(t, reg, v)
	out, err := decodeAs[T](reg, data)
	require.NoError(t, err)

	return out
}

// le concatenates byte fragments for expected encodings.
func le(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
