package compress

// ZstdCompressor is the ratio-oriented choice for history snapshots that are
// kept long-term. The implementation is selected at build time: the cgo_zstd
// tag uses the cgo-backed libzstd binding, the default is pure Go.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
