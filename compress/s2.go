package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/canon/errs"
)

type S2Compressor struct{}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor returns an S2 block compressor.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Compress compresses data as a single S2 block.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// Decompress checks the length stored in the block against size before
// allocating the output.
func (c S2Compressor) Decompress(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return checkSize("s2", nil, size)
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %w", errs.ErrInvalidFrameSize, err)
	}
	if n != size {
		return nil, fmt.Errorf("%w: s2 payload is %d bytes, header says %d", errs.ErrInvalidFrameSize, n, size)
	}

	out, err := s2.Decode(make([]byte, size), data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %w", errs.ErrInvalidFrameSize, err)
	}

	return checkSize("s2", out, size)
}
