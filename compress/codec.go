// Package compress provides the compression codecs used for transaction
// history snapshots.
//
// Snapshots are small JSON documents, optionally with per-fragment payload
// dumps that compress very well. Four codecs are available: None, Zstd
// (cgo-backed behind the cgo_zstd build tag, pure Go otherwise), S2, and LZ4.
package compress

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// Compressor compresses a byte payload.
//
// The returned slice is owned by the caller; the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same algorithm. It validates the
// input format and errors on corrupted or mismatched data.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of one algorithm.
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

// GetCodec retrieves the built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCompressionType, compressionType)
}

// FileExtension returns the filename suffix for snapshots written with the
// given compression, "" for none.
func FileExtension(compressionType format.CompressionType) string {
	switch compressionType {
	case format.CompressionZstd:
		return ".zst"
	case format.CompressionS2:
		return ".s2"
	case format.CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}
