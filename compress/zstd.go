package compress

// ZstdCompressor provides Zstandard compression, the best ratio of the
// built-in codecs. The implementation is pure Go by default; building with
// the canon_cgozstd tag and cgo enabled switches to the libzstd binding.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor returns a Zstd compressor at the default level.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
