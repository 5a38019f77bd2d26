package compress

import (
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
)

// Compressor compresses serialized buyer inputs.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
//   - Internal encoders may be pooled and reused
type Compressor interface {
	// Compress compresses data. It never fails on a valid byte slice, including an empty one;
	// the error return exists for codecs backed by writers.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same version.
type Decompressor interface {
	// Decompress returns the original bytes, or an error if data is corrupted or was produced
	// by a different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. Decompress(Compress(x)) == x for every x.
//
// Thread Safety: every built-in Codec is safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor
}

// Stats describes the effect of one compression call.
type Stats struct {
	Version        format.CompressorVersion
	OriginalSize   int
	CompressedSize int
}

// Ratio returns compressed size / original size, or 1.0 for empty input.
//
// Values below 1.0 mean the codec saved space.
func (s Stats) Ratio() float64 {
	if s.OriginalSize == 0 {
		return 1.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the saved space as a percentage (0-100, negative on expansion).
func (s Stats) SpaceSavings() float64 {
	return (1.0 - s.Ratio()) * 100.0
}

// Measure compresses data with codec and reports the resulting Stats along with the output.
func Measure(codec Codec, version format.CompressorVersion, data []byte) ([]byte, Stats, error) {
	out, err := codec.Compress(data)
	if err != nil {
		return nil, Stats{}, err
	}

	return out, Stats{Version: version, OriginalSize: len(data), CompressedSize: len(out)}, nil
}

// builtinCodecs is the compressor version table. Keys are explicit; anything absent is
// rejected by GetCompressor.
var builtinCodecs = map[format.CompressorVersion]Codec{
	format.CompressorGzip: NewGzipCompressor(),
	format.CompressorZstd: NewZstdCompressor(),
	format.CompressorS2:   NewS2Compressor(),
	format.CompressorLZ4:  NewLZ4Compressor(),
}

// GetCompressor retrieves the built-in Codec registered for version.
//
// Returns:
//   - Codec: Shared, concurrency-safe codec instance
//   - error: *errs.UnsupportedVersionError (matches errs.ErrUnsupportedCompressorVersion)
func GetCompressor(version format.CompressorVersion) (Codec, error) {
	if codec, ok := builtinCodecs[version]; ok {
		return codec, nil
	}

	return nil, &errs.UnsupportedVersionError{Kind: errs.KindCompressor, Version: int(version)}
}

// Versions lists the registered compressor versions in ascending order.
func Versions() []format.CompressorVersion {
	return []format.CompressorVersion{
		format.CompressorGzip,
		format.CompressorZstd,
		format.CompressorS2,
		format.CompressorLZ4,
	}
}
