// Package compress provides the payload codecs used by frame.
//
// Every codec compresses a whole encoded value in one call. Decompress is
// given the exact uncompressed size recorded in the frame header and fails
// with errs.ErrInvalidFrameSize when the output disagrees, so a corrupt
// stored length never drives an oversized allocation.
//
// Supported algorithms:
//   - None: payload stored as is
//   - Zstd: best ratio; pure Go by default, cgo gozstd with the canon_cgozstd build tag
//   - S2: fast with a reasonable ratio
//   - LZ4: block format, fastest decompression
//
// Codecs are stateless from the caller's point of view and safe for
// concurrent use; internal encoders and decoders are pooled.
//
//	c, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//	    return err
//	}
//	packed, err := c.Compress(payload)
//	...
//	payload, err = c.Decompress(packed, len(payload))
package compress
