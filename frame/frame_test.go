package frame

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/format"
)

var allCompressions = []format.CompressionType{
	format.CompressionNone,
	format.CompressionZstd,
	format.CompressionS2,
	format.CompressionLZ4,
}

func samplePayload() []byte {
	var buf bytes.Buffer
	for i := range 300 {
		fmt.Fprintf(&buf, "record-%03d;", i%50)
	}

	return buf.Bytes()
}

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{
		Options:       format.MagicFrameV1 | format.FlagFingerprint,
		Compression:   format.CompressionS2,
		PayloadLength: 1000,
		StoredLength:  420,
		Fingerprint:   0x0123456789ABCDEF,
		Checksum:      0xFEDCBA9876543210,
	}

	data := h.Bytes()
	require.Len(t, data, format.HeaderSize)
	require.Equal(t, []byte{0x11, 0xCA, 0x03, 0x00}, data[:4])

	parsed, err := ParseHeader(data)
	require.NoError(t, err)
	require.Equal(t, h, parsed)
	require.True(t, parsed.HasFingerprint())
}

func TestHeader_Errors(t *testing.T) {
	valid := Header{Options: format.MagicFrameV1, Compression: format.CompressionNone}

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, errs.ErrInvalidFrameSize},
		{"bad magic", func(b []byte) []byte { b[1] = 0xEA; return b }, errs.ErrInvalidMagicNumber},
		{"reserved flag", func(b []byte) []byte { b[0] |= 0x04; return b }, errs.ErrInvalidFrameFlags},
		{"reserved byte", func(b []byte) []byte { b[3] = 1; return b }, errs.ErrInvalidFrameFlags},
		{"zero compression", func(b []byte) []byte { b[2] = 0; return b }, errs.ErrInvalidFrameFlags},
		{"unknown compression", func(b []byte) []byte { b[2] = 9; return b }, errs.ErrInvalidFrameFlags},
		{"unflagged fingerprint", func(b []byte) []byte { b[12] = 1; return b }, errs.ErrInvalidFrameFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.mutate(valid.Bytes()))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSealOpen(t *testing.T) {
	payload := samplePayload()

	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			sealed, err := Seal(payload, WithCompression(c))
			require.NoError(t, err)
			if c != format.CompressionNone {
				require.Less(t, len(sealed), format.HeaderSize+len(payload))
			}

			out, h, err := Open(sealed)
			require.NoError(t, err)
			require.Equal(t, payload, out)
			require.Equal(t, c, h.Compression)
			require.Equal(t, uint32(len(payload)), h.PayloadLength)
			require.False(t, h.HasFingerprint())
		})
	}
}

func TestSealOpen_Empty(t *testing.T) {
	for _, c := range allCompressions {
		sealed, err := Seal(nil, WithCompression(c))
		require.NoError(t, err)
		require.Len(t, sealed, format.HeaderSize)

		out, _, err := Open(sealed)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestOpen_Fingerprint(t *testing.T) {
	payload := samplePayload()

	pinned, err := Seal(payload, WithFingerprint(42))
	require.NoError(t, err)
	unpinned, err := Seal(payload)
	require.NoError(t, err)

	_, h, err := Open(pinned, WithFingerprint(42))
	require.NoError(t, err)
	require.Equal(t, uint64(42), h.Fingerprint)

	// readers that do not pin accept any frame
	_, _, err = Open(pinned)
	require.NoError(t, err)

	_, _, err = Open(pinned, WithFingerprint(43))
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
	_, _, err = Open(unpinned, WithFingerprint(42))
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	zero, err := Seal(payload, WithFingerprint(0))
	require.NoError(t, err)
	_, h, err = Open(zero, WithFingerprint(0))
	require.NoError(t, err)
	require.True(t, h.HasFingerprint())
}

func TestOpen_Corruption(t *testing.T) {
	payload := samplePayload()

	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			sealed, err := Seal(payload, WithCompression(c))
			require.NoError(t, err)

			_, _, err = Open(sealed[:len(sealed)-1])
			require.ErrorIs(t, err, errs.ErrInvalidFrameSize)

			_, _, err = Open(append(bytes.Clone(sealed), 0))
			require.ErrorIs(t, err, errs.ErrInvalidFrameSize)

			flipped := bytes.Clone(sealed)
			flipped[20] ^= 0xFF // checksum
			_, _, err = Open(flipped)
			require.ErrorIs(t, err, errs.ErrChecksumMismatch)
		})
	}

	sealed, err := Seal(payload)
	require.NoError(t, err)
	sealed[format.HeaderSize+5] ^= 0x01
	_, _, err = Open(sealed)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestOpen_MaxPayload(t *testing.T) {
	sealed, err := Seal(samplePayload())
	require.NoError(t, err)

	_, _, err = Open(sealed, WithMaxPayload(16))
	require.ErrorIs(t, err, errs.ErrLengthOverflow)
}

func TestOptions_Errors(t *testing.T) {
	_, err := Seal(nil, WithCompression(format.CompressionType(0)))
	require.ErrorIs(t, err, errs.ErrInvalidFrameFlags)

	_, _, err = Open(nil, WithCompression(format.CompressionType(7)))
	require.ErrorIs(t, err, errs.ErrInvalidFrameFlags)
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{samplePayload(), []byte("second"), nil}

	for i, p := range payloads {
		_, err := WriteTo(&buf, p, WithCompression(allCompressions[i%len(allCompressions)]), WithFingerprint(7))
		require.NoError(t, err)
	}

	for _, want := range payloads {
		got, h, err := ReadFrom(&buf, WithFingerprint(7))
		require.NoError(t, err)
		require.Equal(t, len(want), len(got))
		if len(want) > 0 {
			require.Equal(t, want, got)
		}
		require.Equal(t, uint64(7), h.Fingerprint)
	}

	_, _, err := ReadFrom(&buf)
	require.ErrorIs(t, err, errs.ErrTruncatedInput)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrom_Errors(t *testing.T) {
	sealed, err := Seal(samplePayload())
	require.NoError(t, err)

	_, _, err = ReadFrom(bytes.NewReader(sealed[:len(sealed)-3]))
	require.ErrorIs(t, err, errs.ErrTruncatedInput)

	_, _, err = ReadFrom(bytes.NewReader(sealed), WithMaxPayload(8))
	require.ErrorIs(t, err, errs.ErrLengthOverflow)

	_, _, err = ReadFrom(bytes.NewReader(sealed), WithFingerprint(1))
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	bad := bytes.Clone(sealed)
	bad[0] = 0
	bad[1] = 0
	_, _, err = ReadFrom(bytes.NewReader(bad))
	require.ErrorIs(t, err, errs.ErrInvalidMagicNumber)
}

func TestParseCompression(t *testing.T) {
	for _, c := range allCompressions {
		parsed, err := format.ParseCompression(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}

	parsed, err := format.ParseCompression("zstd")
	require.NoError(t, err)
	require.Equal(t, format.CompressionZstd, parsed)

	_, err = format.ParseCompression("brotli")
	require.ErrorIs(t, err, errs.ErrInvalidFrameFlags)
}

func BenchmarkSealOpen(b *testing.B) {
	payload := samplePayload()

	for _, c := range allCompressions {
		b.Run(c.String(), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(payload)))

			for b.Loop() {
				sealed, err := Seal(payload, WithCompression(c), WithFingerprint(1))
				if err != nil {
					b.Fatal(err)
				}
				if _, _, err := Open(sealed, WithFingerprint(1)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
