package compress

import (
	"fmt"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/format"
)

// Compressor compresses a sealed payload.
//
// The returned slice is owned by the caller; data is not modified but may be
// returned as is by codecs that do not transform it.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload compressed by the matching Compressor.
//
// size is the exact uncompressed length recorded in the frame header. A result
// of any other length is reported as errs.ErrInvalidFrameSize, so corrupted
// or truncated input never yields a partial payload.
type Decompressor interface {
	Decompress(data []byte, size int) ([]byte, error)
}

// Codec combines both directions for one algorithm.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the built-in Codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: unsupported compression type %d", errs.ErrInvalidFrameFlags, uint8(compressionType))
}

func checkSize(algorithm string, out []byte, size int) ([]byte, error) {
	if len(out) != size {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, header says %d",
			errs.ErrInvalidFrameSize, algorithm, len(out), size)
	}

	return out, nil
}
