// Package compress provides the versioned codecs used to shrink serialized buyer inputs before
// they are packed into a payload frame.
//
// # Overview
//
// Every buyer input is compressed independently, and the compressor version is recorded in the
// low five bits of the frame meta byte so the auction server knows how to undo it. The version
// itself is not stored inside the compressed bytes; whoever selected the codec tracks it.
//
//	codec, err := compress.GetCompressor(format.CompressorGzip)
//	if err != nil {
//	    return err // unknown version: configuration error, never retried
//	}
//	compressed, _ := codec.Compress(buyerInput)
//	original, _ := codec.Decompress(compressed)
//
// # Supported Algorithms
//
//   - Gzip (version 0): deflate family reference codec, understood by every server build
//   - Zstd (version 1): best ratio on protobuf encoded audiences
//   - S2 (version 2): fastest, moderate ratio
//   - LZ4 (version 3): fast decode, self-describing block framing
//
// # Guarantees
//
// Decompress(Compress(x)) == x for every byte slice x, including an empty one. Compress never
// fails for valid input. Compress is expected, but not guaranteed, to shrink repetitive content.
//
// # Thread Safety
//
// All built-in codecs are stateless values backed by sync.Pool'd encoders and decoders; they are
// safe for concurrent use and GetCompressor returns shared instances.
package compress
