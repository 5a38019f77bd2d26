// Package frame implements the versioned, fixed-size binary frame that carries the compressed
// buyer input bundle to the auction service.
//
// # Wire Format
//
// All multi-byte integers are big-endian unsigned:
//
//	offset  size     field
//	0       1        meta: (formatterVersion << 5) | compressorVersion
//	1       4        payload length in bytes
//	5       length   payload
//	5+len   padding  zero bytes up to the frame size
//
// The frame size hides the real payload size from anyone observing the encrypted transport,
// which is why frames are padded to buckets or to a negotiated target.
//
// # Sizing Policies
//
//   - V0 (version 0): the smallest configured bucket that fits; larger payloads fail with a
//     *errs.SizeExceededError. Oversized input is never truncated.
//   - ExcessiveMaxSize (version 1): as V0, but the largest bucket is doubled until it fits.
//   - ExactSize (version 2): exactly the seller's target size; without a target the factory
//     falls back to ExcessiveMaxSize.
//
// # Basic Usage
//
//	f, err := frame.NewFormatter(format.FormatterV0, frame.WithBucketSizes(1024, 4096, 8192))
//	if err != nil {
//	    return err
//	}
//	framed, err := f.Apply(compressed, format.CompressorGzip)
//
//	x, _ := frame.NewExtractor(format.FormatterV0)
//	payload, err := x.Extract(framed)
package frame
