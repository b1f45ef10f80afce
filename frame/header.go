package frame

import (
	"fmt"

	"github.com/arloliu/canon/endian"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/format"
)

var engine = endian.GetLittleEndianEngine()

// Header is the fixed-size prefix of a frame.
type Header struct {
	// Options packs the magic number (bits 4-15) and flags (bits 0-3).
	Options     uint16
	Compression format.CompressionType
	// PayloadLength is the payload size before compression.
	PayloadLength uint32
	// StoredLength is the number of payload bytes following the header.
	StoredLength uint32
	// Fingerprint is the schema fingerprint the payload was encoded against.
	Fingerprint uint64
	// Checksum is the xxHash64 of the uncompressed payload.
	Checksum uint64
}

// HasFingerprint reports whether the frame is pinned to a schema.
func (h Header) HasFingerprint() bool {
	return h.Options&format.FlagFingerprint != 0
}

// Validate checks the magic number, the flag bits and the compression type.
func (h Header) Validate() error {
	if h.Options&format.MagicNumberMask != format.MagicFrameV1 {
		return fmt.Errorf("%w: 0x%04x", errs.ErrInvalidMagicNumber, h.Options&format.MagicNumberMask)
	}
	if flags := h.Options & format.FlagMask; flags&^format.FlagFingerprint != 0 {
		return fmt.Errorf("%w: reserved bits 0x%x set", errs.ErrInvalidFrameFlags, flags)
	}
	if !h.Compression.Valid() {
		return fmt.Errorf("%w: compression type %d", errs.ErrInvalidFrameFlags, uint8(h.Compression))
	}
	if !h.HasFingerprint() && h.Fingerprint != 0 {
		return fmt.Errorf("%w: fingerprint present without its flag", errs.ErrInvalidFrameFlags)
	}

	return nil
}

// Parse parses the header from exactly format.HeaderSize bytes.
func (h *Header) Parse(data []byte) error {
	if len(data) != format.HeaderSize {
		return fmt.Errorf("%w: header is %d bytes", errs.ErrInvalidFrameSize, len(data))
	}

	h.Options = engine.Uint16(data[0:2])
	h.Compression = format.CompressionType(data[2])
	if data[3] != 0 {
		return fmt.Errorf("%w: reserved byte 0x%02x", errs.ErrInvalidFrameFlags, data[3])
	}
	h.PayloadLength = engine.Uint32(data[4:8])
	h.StoredLength = engine.Uint32(data[8:12])
	h.Fingerprint = engine.Uint64(data[12:20])
	h.Checksum = engine.Uint64(data[20:28])

	return h.Validate()
}

// AppendTo appends the serialized header to b.
func (h *Header) AppendTo(b []byte) []byte {
	b = engine.AppendUint16(b, h.Options)
	b = append(b, byte(h.Compression), 0)
	b = engine.AppendUint32(b, h.PayloadLength)
	b = engine.AppendUint32(b, h.StoredLength)
	b = engine.AppendUint64(b, h.Fingerprint)

	return engine.AppendUint64(b, h.Checksum)
}

// Bytes serializes the header into a new slice.
func (h *Header) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, format.HeaderSize))
}

// ParseHeader parses the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < format.HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d for the header",
			errs.ErrInvalidFrameSize, len(data), format.HeaderSize)
	}

	var h Header
	if err := h.Parse(data[:format.HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
