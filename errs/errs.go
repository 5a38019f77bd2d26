// Package errs defines the error values shared by the adpayload packages.
//
// Sentinels are matched with errors.Is. Errors that carry diagnostics (the requested version,
// the offending payload size) are typed and still match their sentinel, so callers can use
// either errors.Is or errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Configuration errors. A request that hits one of these has a protocol or version mismatch
// with the implementation table and must not be retried.
var (
	ErrUnsupportedCompressorVersion = errors.New("unsupported compressor version")
	ErrUnsupportedFormatterVersion  = errors.New("unsupported formatter version")
	ErrUnsupportedCreatorVersion    = errors.New("unsupported buyer input creator version")
	ErrInvalidMetaVersion           = errors.New("version does not fit in the meta byte")
	ErrInvalidBucketSizes           = errors.New("invalid payload bucket sizes")
	ErrInvalidTargetSize            = errors.New("invalid payload target size")
	ErrInvalidConfig                = errors.New("invalid configuration")
)

// Formatting and decoding errors.
var (
	ErrPayloadSizeExceeded = errors.New("payload size exceeds limit")
	ErrDataSizeMismatch    = errors.New("data size mismatch")
	ErrMalformedMessage    = errors.New("malformed message")
)

// Encryption errors.
var (
	ErrUnknownKeyID     = errors.New("unknown key id")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// UnsupportedVersionError reports a version identifier missing from an implementation table.
type UnsupportedVersionError struct {
	Kind    string // "compressor", "formatter", "extractor" or "buyer input creator"
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s implementation not found for version %d", e.Kind, e.Version)
}

// Is matches the sentinel for the table the version was looked up in.
func (e *UnsupportedVersionError) Is(target error) bool {
	switch target { //nolint: errorlint
	case ErrUnsupportedCompressorVersion:
		return e.Kind == KindCompressor
	case ErrUnsupportedFormatterVersion:
		return e.Kind == KindFormatter || e.Kind == KindExtractor
	case ErrUnsupportedCreatorVersion:
		return e.Kind == KindCreator
	default:
		return false
	}
}

// Implementation table names used by UnsupportedVersionError.
const (
	KindCompressor = "compressor"
	KindFormatter  = "formatter"
	KindExtractor  = "extractor"
	KindCreator    = "buyer input creator"
)

// SizeExceededError reports a payload that does not fit the frame size a formatter allows.
type SizeExceededError struct {
	// SizeKB is ceil((header + payload) / 1024).
	SizeKB int
	// LimitBytes is the largest frame the formatter could produce.
	LimitBytes int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("%s: %d KB (limit %d bytes)", ErrPayloadSizeExceeded, e.SizeKB, e.LimitBytes)
}

func (e *SizeExceededError) Is(target error) bool {
	return target == ErrPayloadSizeExceeded //nolint: errorlint
}
