package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances, which keep a hash table between calls.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4 block modes, stored in the first byte of every LZ4Compressor output.
const (
	lz4ModeStored     byte = 0 // payload follows verbatim
	lz4ModeCompressed byte = 1 // payload is an lz4 block
)

// lz4MaxDecodedSize bounds the decoded length accepted from the stream header.
const lz4MaxDecodedSize = 128 * 1024 * 1024

var errLZ4Corrupted = errors.New("lz4: corrupted block header")

// LZ4Compressor provides LZ4 block compression (compressor version 3).
//
// Output layout: mode byte, uvarint decoded length, then the block. Raw lz4 blocks carry
// neither, and CompressBlock reports incompressible input as a zero-length block, so both are
// recorded to keep Decompress(Compress(x)) == x for every x.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates a new LZ4 compressor.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Compress compresses data using a pooled lz4.Compressor.
func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, 1+binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	hdr := 1 + binary.PutUvarint(dst[1:], uint64(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[hdr:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}

	if n == 0 || n >= len(data) {
		dst[0] = lz4ModeStored
		n = copy(dst[hdr:], data)
	} else {
		dst[0] = lz4ModeCompressed
	}

	return dst[:hdr+n], nil
}

// Decompress reverses Compress.
func (c LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, errLZ4Corrupted
	}

	size, n := binary.Uvarint(data[1:])
	if n <= 0 || size > lz4MaxDecodedSize {
		return nil, errLZ4Corrupted
	}
	body := data[1+n:]

	switch data[0] {
	case lz4ModeStored:
		if uint64(len(body)) != size {
			return nil, errLZ4Corrupted
		}
		out := make([]byte, len(body))
		copy(out, body)

		return out, nil
	case lz4ModeCompressed:
		out := make([]byte, size)
		written, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if uint64(written) != size {
			return nil, errLZ4Corrupted
		}

		return out, nil
	default:
		return nil, errLZ4Corrupted
	}
}
