// Package hash computes the frame digests logged by the pipeline.
package hash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Digest computes the xxHash64 of data.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// DigestString formats the digest of data as 16 hex digits, the form used in log lines.
func DigestString(data []byte) string {
	return fmt.Sprintf("%016x", Digest(data))
}
