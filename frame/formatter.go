package frame

import (
	"math"
	"slices"

	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/internal/options"
)

// DefaultBucketSizes are the frame sizes used when no bucket list is configured.
var DefaultBucketSizes = []int{1024, 2048, 4096, 8192, 16384, 32768, 65536}

// PayloadFormatter turns compressed, unframed payload bytes into a padded frame.
type PayloadFormatter interface {
	Apply(unformatted []byte, compressorVersion format.CompressorVersion) ([]byte, error)
}

// sizing is the closed set of frame sizing policies.
type sizing uint8

const (
	// sizingFixedBucket picks the smallest bucket that fits and rejects anything larger.
	sizingFixedBucket sizing = iota + 1
	// sizingGrowingBucket doubles the largest bucket until the payload fits.
	sizingGrowingBucket
	// sizingExactTarget pads to one externally supplied size.
	sizingExactTarget
)

// formatterSizing maps every supported formatter version to its sizing policy.
// Versions missing from the table are rejected by NewFormatter and NewExtractor.
var formatterSizing = map[format.FormatterVersion]sizing{
	format.FormatterV0:               sizingFixedBucket,
	format.FormatterExcessiveMaxSize: sizingGrowingBucket,
	format.FormatterExactSize:        sizingExactTarget,
}

type formatterSettings struct {
	buckets []int
	target  int
}

// Option configures NewFormatter.
type Option = options.Option[*formatterSettings]

// WithBucketSizes sets the allowed frame sizes. The list is copied and sorted; every size must
// be positive.
func WithBucketSizes(sizes ...int) Option {
	return options.New(func(s *formatterSettings) error {
		if len(sizes) == 0 {
			return errs.ErrInvalidBucketSizes
		}
		for _, size := range sizes {
			if size <= 0 {
				return errs.ErrInvalidBucketSizes
			}
		}
		s.buckets = slices.Sorted(slices.Values(sizes))

		return nil
	})
}

// WithTargetSize sets the exact frame size negotiated with the seller. A non-positive size means
// no target is available.
func WithTargetSize(size int) Option {
	return options.NoError(func(s *formatterSettings) {
		s.target = size
	})
}

// Formatter frames payloads using one of the sizing policies.
//
// Formatter is immutable after construction and safe for concurrent use.
type Formatter struct {
	version format.FormatterVersion
	sizing  sizing
	buckets []int
	target  int
}

var _ PayloadFormatter = (*Formatter)(nil)

// NewFormatter creates the formatter registered for version.
//
// ExactSize without a positive target silently falls back to the growing-bucket policy and
// writes the ExcessiveMaxSize version into the meta byte, since exact packing needs a
// negotiated target that is not always present.
//
// Returns:
//   - *Formatter: Configured formatter
//   - error: *errs.UnsupportedVersionError for unknown versions, errs.ErrInvalidBucketSizes
func NewFormatter(version format.FormatterVersion, opts ...Option) (*Formatter, error) {
	policy, ok := formatterSizing[version]
	if !ok {
		return nil, &errs.UnsupportedVersionError{Kind: errs.KindFormatter, Version: int(version)}
	}

	s := &formatterSettings{buckets: DefaultBucketSizes}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	f := &Formatter{version: version, sizing: policy, buckets: s.buckets}
	if policy == sizingExactTarget {
		if s.target <= 0 {
			f.version = format.FormatterExcessiveMaxSize
			f.sizing = sizingGrowingBucket
		} else {
			f.target = s.target
		}
	}

	return f, nil
}

// Version returns the formatter version written into the meta byte.
func (f *Formatter) Version() format.FormatterVersion {
	return f.version
}

// Apply frames unformatted:
//
//	[meta][uint32 length][payload][zero padding up to the frame size]
//
// Returns a *errs.SizeExceededError when the policy cannot fit the payload, and
// errs.ErrInvalidMetaVersion when compressorVersion does not fit in 5 bits.
func (f *Formatter) Apply(unformatted []byte, compressorVersion format.CompressorVersion) ([]byte, error) {
	h := Header{FormatterVersion: f.version, CompressorVersion: compressorVersion}
	if _, err := MetaByte(h.FormatterVersion, h.CompressorVersion); err != nil {
		return nil, err
	}

	required := HeaderSize + len(unformatted)
	if uint64(len(unformatted)) > math.MaxUint32 {
		return nil, &errs.SizeExceededError{SizeKB: sizeKB(required), LimitBytes: math.MaxUint32}
	}

	size, err := f.frameSize(required)
	if err != nil {
		return nil, err
	}

	h.Length = uint32(len(unformatted))
	out := make([]byte, size)
	if err := h.put(out); err != nil {
		return nil, err
	}
	copy(out[HeaderSize:], unformatted)

	return out, nil
}

// frameSize returns the total frame size for a header plus payload of required bytes.
func (f *Formatter) frameSize(required int) (int, error) {
	switch f.sizing {
	case sizingFixedBucket:
		if size, ok := smallestBucket(f.buckets, required); ok {
			return size, nil
		}

		return 0, &errs.SizeExceededError{SizeKB: sizeKB(required), LimitBytes: int64(f.buckets[len(f.buckets)-1])}
	case sizingGrowingBucket:
		if size, ok := smallestBucket(f.buckets, required); ok {
			return size, nil
		}

		size := f.buckets[len(f.buckets)-1]
		for size < required {
			size *= 2
		}

		return size, nil
	case sizingExactTarget:
		if required > f.target {
			return 0, &errs.SizeExceededError{SizeKB: sizeKB(required), LimitBytes: int64(f.target)}
		}

		return f.target, nil
	}

	return 0, &errs.UnsupportedVersionError{Kind: errs.KindFormatter, Version: int(f.version)}
}

func smallestBucket(buckets []int, required int) (int, bool) {
	i, _ := slices.BinarySearch(buckets, required)
	if i == len(buckets) {
		return 0, false
	}

	return buckets[i], true
}

// sizeKB returns ceil(n / 1024).
func sizeKB(n int) int {
	return (n + 1023) / 1024
}
