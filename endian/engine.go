// Package endian provides the byte order engine used by the canon wire format.
//
// The format is always little-endian. EndianEngine combines binary.ByteOrder and
// binary.AppendByteOrder so writers can append directly into a growing buffer:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, 42)
//
// All functions in this package are safe for concurrent use.
package endian

import (
	"encoding/binary"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian from
// the standard library.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// AppendUint128 appends a 128-bit value given as its low and high 64-bit halves.
// The low half is written first, so the result is the little-endian encoding of
// the full 128-bit integer when engine is little-endian.
func AppendUint128(engine EndianEngine, b []byte, lo, hi uint64) []byte {
	b = engine.AppendUint64(b, lo)

	return engine.AppendUint64(b, hi)
}

// Uint128 reads a 128-bit value written by AppendUint128.
// Panics if b is shorter than 16 bytes, like binary.ByteOrder.Uint64 does.
func Uint128(engine EndianEngine, b []byte) (lo, hi uint64) {
	_ = b[15] // bounds check hint to compiler

	return engine.Uint64(b[0:8]), engine.Uint64(b[8:16])
}
