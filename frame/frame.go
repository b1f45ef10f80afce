// Package frame seals encoded payloads into self-describing envelopes.
//
// A frame is a fixed header followed by the payload, optionally compressed:
//
//	sealed, err := frame.Seal(payload,
//	    frame.WithCompression(format.CompressionZstd),
//	    frame.WithFingerprint(reg.Fingerprint()),
//	)
//	payload, header, err := frame.Open(sealed, frame.WithFingerprint(reg.Fingerprint()))
//
// The header records the payload length, an xxHash64 checksum and, when
// pinned, the fingerprint of the schema the payload was encoded with. Open
// rejects frames whose checksum does not match and, when the reader pins a
// fingerprint, frames written against a different schema.
package frame

import (
	"fmt"
	"io"
	"math"

	"github.com/arloliu/canon/compress"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/format"
	"github.com/arloliu/canon/internal/hash"
	"github.com/arloliu/canon/internal/options"
	"github.com/arloliu/canon/internal/pool"
)

// DefaultMaxPayload bounds the payload length ReadFrom accepts.
const DefaultMaxPayload = 64 << 20

type config struct {
	compression format.CompressionType
	fingerprint uint64
	pinned      bool
	maxPayload  uint32
}

// Option configures Seal, Open, WriteTo and ReadFrom.
type Option = options.Option[*config]

// WithCompression selects the payload compression used when sealing.
func WithCompression(c format.CompressionType) Option {
	return options.New(func(cfg *config) error {
		if !c.Valid() {
			return fmt.Errorf("%w: compression type %d", errs.ErrInvalidFrameFlags, uint8(c))
		}
		cfg.compression = c

		return nil
	})
}

// WithFingerprint pins the frame to a schema fingerprint. Sealing records it;
// opening requires the frame to carry the same value.
func WithFingerprint(fp uint64) Option {
	return options.NoError(func(cfg *config) {
		cfg.fingerprint = fp
		cfg.pinned = true
	})
}

// WithMaxPayload bounds the payload and stored lengths accepted when opening.
func WithMaxPayload(n uint32) Option {
	return options.NoError(func(cfg *config) {
		cfg.maxPayload = n
	})
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		compression: format.CompressionNone,
		maxPayload:  DefaultMaxPayload,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func seal(cfg *config, payload []byte) (Header, []byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return Header{}, nil, fmt.Errorf("%w: payload of %d bytes", errs.ErrLengthOverflow, len(payload))
	}

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return Header{}, nil, err
	}
	stored, err := codec.Compress(payload)
	if err != nil {
		return Header{}, nil, fmt.Errorf("compress %s payload: %w", cfg.compression, err)
	}
	if uint64(len(stored)) > math.MaxUint32 {
		return Header{}, nil, fmt.Errorf("%w: stored payload of %d bytes", errs.ErrLengthOverflow, len(stored))
	}

	h := Header{
		Options:       format.MagicFrameV1,
		Compression:   cfg.compression,
		PayloadLength: uint32(len(payload)), //nolint:gosec
		StoredLength:  uint32(len(stored)),  //nolint:gosec
		Checksum:      hash.Checksum(payload),
	}
	if cfg.pinned {
		h.Options |= format.FlagFingerprint
		h.Fingerprint = cfg.fingerprint
	}

	return h, stored, nil
}

// Seal wraps payload in a frame.
func Seal(payload []byte, opts ...Option) ([]byte, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	h, stored, err := seal(cfg, payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, format.HeaderSize+len(stored))
	out = h.AppendTo(out)

	return append(out, stored...), nil
}

func (cfg *config) check(h Header) error {
	if h.PayloadLength > cfg.maxPayload || h.StoredLength > cfg.maxPayload {
		return fmt.Errorf("%w: payload of %d bytes (%d stored) exceeds %d",
			errs.ErrLengthOverflow, h.PayloadLength, h.StoredLength, cfg.maxPayload)
	}
	if cfg.pinned {
		if !h.HasFingerprint() {
			return fmt.Errorf("%w: frame is not pinned, want %016x", errs.ErrSchemaMismatch, cfg.fingerprint)
		}
		if h.Fingerprint != cfg.fingerprint {
			return fmt.Errorf("%w: frame has %016x, want %016x", errs.ErrSchemaMismatch, h.Fingerprint, cfg.fingerprint)
		}
	}

	return nil
}

func (cfg *config) unseal(h Header, stored []byte) ([]byte, error) {
	codec, err := compress.GetCodec(h.Compression)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Decompress(stored, int(h.PayloadLength))
	if err != nil {
		return nil, err
	}
	if sum := hash.Checksum(payload); sum != h.Checksum {
		return nil, fmt.Errorf("%w: payload hashes to %016x, header says %016x", errs.ErrChecksumMismatch, sum, h.Checksum)
	}

	return payload, nil
}

// Open validates a frame and returns its payload. data must hold exactly one
// frame. For uncompressed frames the payload aliases data.
func Open(data []byte, opts ...Option) ([]byte, Header, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, Header{}, err
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, Header{}, err
	}
	if err := cfg.check(h); err != nil {
		return nil, h, err
	}
	if got := len(data) - format.HeaderSize; got != int(h.StoredLength) {
		return nil, h, fmt.Errorf("%w: %d payload bytes, header says %d", errs.ErrInvalidFrameSize, got, h.StoredLength)
	}

	payload, err := cfg.unseal(h, data[format.HeaderSize:])
	if err != nil {
		return nil, h, err
	}

	return payload, h, nil
}

// WriteTo writes payload to w as one frame with a single Write call.
func WriteTo(w io.Writer, payload []byte, opts ...Option) (int64, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return 0, err
	}

	h, stored, err := seal(cfg, payload)
	if err != nil {
		return 0, err
	}

	buf := pool.GetFrameBuffer()
	defer pool.PutFrameBuffer(buf)

	buf.Grow(format.HeaderSize + len(stored))
	var hdr [format.HeaderSize]byte
	buf.MustWrite(h.AppendTo(hdr[:0]))
	buf.MustWrite(stored)

	return buf.WriteTo(w)
}

// ReadFrom reads one frame from r and returns its payload. The payload
// length is bounded by WithMaxPayload before anything is allocated.
func ReadFrom(r io.Reader, opts ...Option) ([]byte, Header, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, Header{}, err
	}

	var hdr [format.HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, Header{}, fmt.Errorf("%w: frame header: %w", errs.ErrTruncatedInput, err)
	}

	var h Header
	if err := h.Parse(hdr[:]); err != nil {
		return nil, Header{}, err
	}
	if err := cfg.check(h); err != nil {
		return nil, h, err
	}

	stored := make([]byte, h.StoredLength)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, h, fmt.Errorf("%w: frame payload: %w", errs.ErrTruncatedInput, err)
	}

	payload, err := cfg.unseal(h, stored)
	if err != nil {
		return nil, h, err
	}

	return payload, h, nil
}
