package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsupportedVersionError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &UnsupportedVersionError{Kind: KindFormatter, Version: 6})

	require.ErrorIs(t, err, ErrUnsupportedFormatterVersion)
	require.NotErrorIs(t, err, ErrUnsupportedCompressorVersion)
	require.Contains(t, err.Error(), "implementation not found for version 6")

	var uv *UnsupportedVersionError
	require.True(t, errors.As(err, &uv))
	require.Equal(t, 6, uv.Version)

	require.ErrorIs(t, &UnsupportedVersionError{Kind: KindCompressor, Version: 9}, ErrUnsupportedCompressorVersion)
	require.ErrorIs(t, &UnsupportedVersionError{Kind: KindExtractor, Version: 9}, ErrUnsupportedFormatterVersion)
	require.ErrorIs(t, &UnsupportedVersionError{Kind: KindCreator, Version: 9}, ErrUnsupportedCreatorVersion)
}

func TestSizeExceededError(t *testing.T) {
	err := &SizeExceededError{SizeKB: 5, LimitBytes: 4096}

	require.ErrorIs(t, err, ErrPayloadSizeExceeded)
	require.Equal(t, "payload size exceeds limit: 5 KB (limit 4096 bytes)", err.Error())
}
