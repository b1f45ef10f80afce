// Package format holds the identifiers shared by the frame layout and the
// compression codecs.
package format

import (
	"fmt"
	"strings"

	"github.com/arloliu/canon/errs"
)

type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1 // CompressionNone stores the payload as is.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 block compression.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Valid reports whether c names a supported compression.
func (c CompressionType) Valid() bool {
	return c >= CompressionNone && c <= CompressionLZ4
}

// ParseCompression parses a compression name, case-insensitively.
func ParseCompression(s string) (CompressionType, error) {
	for c := CompressionNone; c <= CompressionLZ4; c++ {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown compression %q", errs.ErrInvalidFrameFlags, s)
}

// Frame layout. All multi-byte fields are little-endian.
//
//	0-1   options: magic (bits 4-15) and flags (bits 0-3)
//	2     compression type
//	3     reserved, zero
//	4-7   payload length before compression
//	8-11  stored length after compression
//	12-19 schema fingerprint, zero unless FlagFingerprint is set
//	20-27 xxHash64 of the uncompressed payload
const (
	HeaderSize = 28

	MagicNumberMask = 0xFFF0 // Mask for magic number (bits 4-15)
	FlagMask        = 0x000F // Mask for flag bits (bits 0-3)
	MagicFrameV1    = 0xCA10 // MagicFrameV1 identifies version 1 of the frame layout.

	FlagFingerprint = 0x0001 // FlagFingerprint marks a frame pinned to a schema fingerprint.
)
