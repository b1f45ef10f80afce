package compress

// NoOpCompressor stores payloads without compression.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor returns a NoOpCompressor.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data itself without copying.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data itself after checking its length against size.
// The result shares memory with data.
func (c NoOpCompressor) Decompress(data []byte, size int) ([]byte, error) {
	return checkSize("stored", data, size)
}
