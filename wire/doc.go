// Package wire implements the primitive layer of the canon binary format.
//
// Every scalar is written little-endian with no padding and no length prefix:
//
//	uint8/int8          1 byte
//	uint16/int16        2 bytes
//	uint32/int32        4 bytes
//	uint64/int64        8 bytes
//	Uint128/Int128     16 bytes (low 64 bits first)
//	float32/float64     4/8 bytes, IEEE-754 bit pattern
//	bool                1 byte, 0x00 or 0x01
//
// Variable-length byte sequences and strings are a uint32 little-endian length
// followed by that many raw bytes, with no terminator.
//
// Writer appends into a pooled buffer and never fails except when a length does
// not fit the uint32 prefix. Reader decodes from a byte slice or an io.Reader
// and reports errs.ErrTruncatedInput, errs.ErrLengthOverflow and
// errs.ErrInvalidBooleanByte.
//
// Neither type is safe for concurrent use.
package wire
