package frame

import (
	"fmt"

	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
)

// PayloadExtractor reverses a PayloadFormatter.
type PayloadExtractor interface {
	Extract(formatted []byte) ([]byte, error)
}

// Extractor reads frames produced by any sizing policy. The header layout is shared, so the
// policy only matters for version bookkeeping.
type Extractor struct {
	version format.FormatterVersion
}

var _ PayloadExtractor = (*Extractor)(nil)

// NewExtractor creates the extractor registered for version.
//
// Returns *errs.UnsupportedVersionError for versions missing from the formatter table.
func NewExtractor(version format.FormatterVersion) (*Extractor, error) {
	if _, ok := formatterSizing[version]; !ok {
		return nil, &errs.UnsupportedVersionError{Kind: errs.KindExtractor, Version: int(version)}
	}

	return &Extractor{version: version}, nil
}

// Version returns the formatter version this extractor was created for.
func (e *Extractor) Version() format.FormatterVersion {
	return e.version
}

// Extract returns a copy of the payload bytes carried by formatted.
//
// The formatter version in the meta byte is not required to match e.Version(): an ExactSize
// request without a target is framed by the growing-bucket policy.
//
// Returns errs.ErrDataSizeMismatch if the frame is shorter than the header or the length prefix
// claims more bytes than the frame holds after the header. Such frames are treated as tampered
// and never truncated.
func (e *Extractor) Extract(formatted []byte) ([]byte, error) {
	h, payload, err := split(formatted)
	if err != nil {
		return nil, err
	}

	out := make([]byte, h.Length)
	copy(out, payload)

	return out, nil
}

func split(formatted []byte) (Header, []byte, error) {
	h, err := ParseHeader(formatted)
	if err != nil {
		return Header{}, nil, err
	}

	capacity := uint64(len(formatted) - HeaderSize)
	if uint64(h.Length) > capacity {
		return Header{}, nil, fmt.Errorf("%w: length prefix %d exceeds frame capacity %d",
			errs.ErrDataSizeMismatch, h.Length, capacity)
	}

	return h, formatted[HeaderSize : HeaderSize+int(h.Length)], nil
}

// Inspection describes a frame for diagnostics.
type Inspection struct {
	Header       Header
	FrameSize    int
	Payload      []byte // aliases the inspected frame
	PaddingBytes int
	// PaddingClean reports whether every byte after the payload is zero.
	PaddingClean bool
}

// Inspect parses formatted without copying and checks its zero padding.
func Inspect(formatted []byte) (Inspection, error) {
	h, payload, err := split(formatted)
	if err != nil {
		return Inspection{}, err
	}

	padding := formatted[HeaderSize+int(h.Length):]
	clean := true
	for _, b := range padding {
		if b != 0 {
			clean = false
			break
		}
	}

	return Inspection{
		Header:       h,
		FrameSize:    len(formatted),
		Payload:      payload,
		PaddingBytes: len(padding),
		PaddingClean: clean,
	}, nil
}
