package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/arloliu/canon/endian"
	"github.com/arloliu/canon/errs"
)

// DefaultMaxLength is the default upper bound for a single length prefix.
const DefaultMaxLength = 64 * 1024 * 1024

// Reader decodes canon primitives from a byte slice or a stream.
//
// A slice-backed Reader knows how many bytes remain and rejects a length prefix
// larger than that with errs.ErrLengthOverflow. A stream-backed Reader can only
// enforce the configured maximum; a short stream surfaces as errs.ErrTruncatedInput.
type Reader struct {
	data      []byte
	off       int
	stream    io.Reader
	scratch   [16]byte
	maxLength uint32
	engine    endian.EndianEngine
}

// NewReader returns a Reader over data. The Reader never modifies data.
func NewReader(data []byte) *Reader {
	return &Reader{
		data:      data,
		maxLength: DefaultMaxLength,
		engine:    endian.GetLittleEndianEngine(),
	}
}

// NewStreamReader returns a Reader that pulls bytes from r on demand.
func NewStreamReader(r io.Reader) *Reader {
	return &Reader{
		stream:    r,
		maxLength: DefaultMaxLength,
		engine:    endian.GetLittleEndianEngine(),
	}
}

// SetMaxLength sets the largest accepted length prefix.
func (r *Reader) SetMaxLength(n uint32) {
	r.maxLength = n
}

// MaxLength returns the largest accepted length prefix.
func (r *Reader) MaxLength() uint32 {
	return r.maxLength
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes, or -1 for stream readers.
func (r *Reader) Remaining() int {
	if r.stream != nil {
		return -1
	}

	return len(r.data) - r.off
}

// next returns the next n bytes. For slice readers the result aliases the input;
// for stream readers small reads reuse the scratch buffer.
func (r *Reader) next(n int) ([]byte, error) {
	if r.stream == nil {
		if len(r.data)-r.off < n {
			return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
				errs.ErrTruncatedInput, n, r.off, len(r.data)-r.off)
		}
		b := r.data[r.off : r.off+n]
		r.off += n

		return b, nil
	}

	var b []byte
	if n <= len(r.scratch) {
		b = r.scratch[:n]
	} else {
		b = make([]byte, n)
	}

	read, err := io.ReadFull(r.stream, b)
	r.off += read
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: need %d bytes at offset %d, got %d",
				errs.ErrTruncatedInput, n, r.off-read, read)
		}

		return nil, err
	}

	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint64(b), nil
}

func (r *Reader) ReadUint128() (Uint128, error) {
	b, err := r.next(16)
	if err != nil {
		return Uint128{}, err
	}
	lo, hi := endian.Uint128(r.engine, b)

	return Uint128{Lo: lo, Hi: hi}, nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err //nolint:gosec
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err //nolint:gosec
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err //nolint:gosec
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err //nolint:gosec
}

func (r *Reader) ReadInt128() (Int128, error) {
	v, err := r.ReadUint128()
	if err != nil {
		return Int128{}, err
	}

	return Int128{Lo: v.Lo, Hi: int64(v.Hi)}, nil //nolint:gosec
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBool reads one byte and rejects anything other than 0x00 and 0x01.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}

	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x at offset %d", errs.ErrInvalidBooleanByte, b, r.off-1)
	}
}

// ReadTag reads a sum type variant tag.
func (r *Reader) ReadTag() (uint8, error) {
	return r.ReadUint8()
}

// ReadCount reads a uint32 element count and checks it against the configured
// maximum. Use ReadLength for byte lengths, which are also checked against the
// remaining input.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if n > r.maxLength {
		return 0, fmt.Errorf("%w: count %d exceeds maximum %d", errs.ErrLengthOverflow, n, r.maxLength)
	}

	return int(n), nil
}

// ReadCountOf reads an element count like ReadCount. Slice readers also reject
// a count whose elements, each at least width bytes long, cannot fit in the
// remaining input.
func (r *Reader) ReadCountOf(width int) (int, error) {
	n, err := r.ReadCount()
	if err != nil {
		return 0, err
	}
	if remaining := r.Remaining(); width > 0 && remaining >= 0 && n > remaining/width {
		return 0, fmt.Errorf("%w: %d elements of at least %d bytes exceed remaining %d bytes",
			errs.ErrLengthOverflow, n, width, remaining)
	}

	return n, nil
}

// ReadLength reads a uint32 byte length and checks it against both the
// configured maximum and, for slice readers, the remaining input.
func (r *Reader) ReadLength() (int, error) {
	n, err := r.ReadCount()
	if err != nil {
		return 0, err
	}
	if remaining := r.Remaining(); remaining >= 0 && n > remaining {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", errs.ErrLengthOverflow, n, remaining)
	}

	return n, nil
}

// ReadFixed reads exactly n raw bytes into a newly allocated slice.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)

	return out, nil
}

// ReadBytes reads a length-prefixed byte sequence into a new slice.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}

	return r.ReadFixed(n)
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	b, err := r.next(n)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
