package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/arloliu/canon/endian"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/pool"
)

// Writer appends canon primitives to an in-memory buffer.
type Writer struct {
	buf    *pool.ByteBuffer
	engine endian.EndianEngine
}

// NewWriter returns a Writer backed by a pooled buffer.
// Call Release once the encoded bytes are no longer referenced.
func NewWriter() *Writer {
	return &Writer{
		buf:    pool.GetEncodeBuffer(),
		engine: endian.GetLittleEndianEngine(),
	}
}

// Release returns the buffer to the pool. The Writer must not be used afterwards.
func (w *Writer) Release() {
	if w.buf != nil {
		pool.PutEncodeBuffer(w.buf)
		w.buf = nil
	}
}

// Bytes returns the encoded bytes. The slice aliases the internal buffer.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Truncate discards everything written after the first n bytes.
func (w *Writer) Truncate(n int) {
	w.buf.Truncate(n)
}

// WriteTo flushes the encoded bytes to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	return w.buf.WriteTo(dst)
}

// WriteRaw appends b verbatim, without a length prefix.
func (w *Writer) WriteRaw(b []byte) {
	w.buf.MustWrite(b)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf.MustWriteByte(v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf.B = w.engine.AppendUint16(w.buf.B, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf.B = w.engine.AppendUint32(w.buf.B, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf.B = w.engine.AppendUint64(w.buf.B, v)
}

func (w *Writer) WriteUint128(v Uint128) {
	w.buf.B = endian.AppendUint128(w.engine, w.buf.B, v.Lo, v.Hi)
}

func (w *Writer) WriteInt8(v int8) {
	w.WriteUint8(uint8(v)) //nolint:gosec
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v)) //nolint:gosec
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v)) //nolint:gosec
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v)) //nolint:gosec
}

func (w *Writer) WriteInt128(v Int128) {
	w.buf.B = endian.AppendUint128(w.engine, w.buf.B, v.Lo, uint64(v.Hi)) //nolint:gosec
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteBool writes 0x01 for true and 0x00 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.MustWriteByte(1)
		return
	}
	w.buf.MustWriteByte(0)
}

// WriteTag writes a sum type variant tag.
func (w *Writer) WriteTag(tag uint8) {
	w.buf.MustWriteByte(tag)
}

// WriteLength writes n as a uint32 length or element count prefix.
//
// Returns errs.ErrLengthOverflow if n does not fit in 32 bits.
func (w *Writer) WriteLength(n int) error {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: length %d does not fit the uint32 prefix", errs.ErrLengthOverflow, n)
	}
	w.WriteUint32(uint32(n)) //nolint:gosec

	return nil
}

// WriteBytes writes a length-prefixed byte sequence.
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.WriteLength(len(b)); err != nil {
		return err
	}
	w.buf.Grow(len(b))
	w.buf.MustWrite(b)

	return nil
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteLength(len(s)); err != nil {
		return err
	}
	w.buf.Grow(len(s))
	w.buf.B = append(w.buf.B, s...)

	return nil
}
