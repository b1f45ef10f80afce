package compress

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/format"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"None": NewNoOpCompressor(),
		"Zstd": NewZstdCompressor(),
		"S2":   NewS2Compressor(),
		"LZ4":  NewLZ4Compressor(),
	}
}

func pseudoRandom(n int) []byte {
	data := make([]byte, n)
	x := uint32(2463534242)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}

	return data
}

// canonPayload mimics encoded records: little-endian ids and short strings.
func canonPayload(records int) []byte {
	var buf bytes.Buffer
	for i := range records {
		buf.Write([]byte{byte(i), byte(i >> 8), 0, 0})
		buf.Write([]byte{5, 0, 0, 0})
		buf.WriteString("entry")
		buf.WriteByte(byte(i % 2))
	}

	return buf.Bytes()
}

func TestGetCodec(t *testing.T) {
	for _, c := range []format.CompressionType{
		format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		codec, err := GetCodec(c)
		require.NoError(t, err)
		require.NotNil(t, codec)
	}

	_, err := GetCodec(format.CompressionType(0))
	require.ErrorIs(t, err, errs.ErrInvalidFrameFlags)
	_, err = GetCodec(format.CompressionType(0x9))
	require.ErrorIs(t, err, errs.ErrInvalidFrameFlags)
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single_byte", []byte{0x42}},
		{"small_text", []byte("Hello, World!")},
		{"literal_boundary", bytes.Repeat([]byte{0x5A}, 15)},
		{"repeated_pattern", bytes.Repeat([]byte("ABCD"), 100)},
		{"records", canonPayload(2048)},
		{"random_small", pseudoRandom(64)},
		{"random_large", pseudoRandom(70000)},
		{"zeros", make([]byte, 1<<20)},
	}

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(tc.data)
					require.NoError(t, err)

					decompressed, err := codec.Decompress(compressed, len(tc.data))
					require.NoError(t, err)
					require.Len(t, decompressed, len(tc.data))
					if len(tc.data) > 0 {
						require.Equal(t, tc.data, decompressed)
					}
				})
			}
		})
	}
}

func TestAllCodecs_SizeMismatch(t *testing.T) {
	data := canonPayload(256)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			_, err = codec.Decompress(compressed, len(data)+1)
			require.ErrorIs(t, err, errs.ErrInvalidFrameSize)

			_, err = codec.Decompress(nil, 3)
			require.ErrorIs(t, err, errs.ErrInvalidFrameSize)
		})
	}
}

func TestAllCodecs_InvalidData(t *testing.T) {
	garbage := []byte{0xFF, 0xFE, 0xFD, 0xFC, 0x01, 0x02, 0x03, 0x04, 0x05}

	for codecName, codec := range getAllCodecs() {
		if codecName == "None" {
			continue
		}
		t.Run(codecName, func(t *testing.T) {
			_, err := codec.Decompress(garbage, 64)
			require.ErrorIs(t, err, errs.ErrInvalidFrameSize)
		})
	}
}

func TestNoOpCompressor_SharesMemory(t *testing.T) {
	data := []byte("shared")
	codec := NewNoOpCompressor()

	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.Same(t, &data[0], &compressed[0])

	out, err := codec.Decompress(compressed, len(data))
	require.NoError(t, err)
	require.Same(t, &data[0], &out[0])
}

func TestLiteralBlock(t *testing.T) {
	for _, n := range []int{1, 14, 15, 16, 269, 270, 525, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			data := pseudoRandom(n)
			out, err := NewLZ4Compressor().Decompress(literalBlock(data), n)
			require.NoError(t, err)
			require.Equal(t, data, out)
		})
	}
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	data := canonPayload(512)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			var wg sync.WaitGroup
			errCh := make(chan error, 16)
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 20 {
						compressed, err := codec.Compress(data)
						if err != nil {
							errCh <- err
							return
						}
						out, err := codec.Decompress(compressed, len(data))
						if err != nil {
							errCh <- err
							return
						}
						if !bytes.Equal(out, data) {
							errCh <- fmt.Errorf("%s: round trip mismatch", codecName)
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errCh)

			for err := range errCh {
				require.NoError(t, err)
			}
		})
	}
}

func BenchmarkAllCodecs_RoundTrip(b *testing.B) {
	data := canonPayload(4096)

	for codecName, codec := range getAllCodecs() {
		b.Run(codecName, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))

			for b.Loop() {
				compressed, err := codec.Compress(data)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := codec.Decompress(compressed, len(data)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
