package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testSettings struct {
	buckets []int
	target  int
	calls   []string
}

func withTarget(n int) Option[*testSettings] {
	return New(func(s *testSettings) error {
		if n <= 0 {
			return errors.New("target must be positive")
		}
		s.target = n
		s.calls = append(s.calls, "target")

		return nil
	})
}

func withBuckets(sizes ...int) Option[*testSettings] {
	return NoError(func(s *testSettings) {
		s.buckets = sizes
		s.calls = append(s.calls, "buckets")
	})
}

func TestApply_InOrder(t *testing.T) {
	s := &testSettings{}

	err := Apply(s, withBuckets(1024, 2048), withTarget(5120))
	require.NoError(t, err)
	require.Equal(t, []int{1024, 2048}, s.buckets)
	require.Equal(t, 5120, s.target)
	require.Equal(t, []string{"buckets", "target"}, s.calls)
}

func TestApply_StopsAtFirstError(t *testing.T) {
	s := &testSettings{}

	err := Apply(s, withTarget(-1), withBuckets(1024))
	require.EqualError(t, err, "target must be positive")
	require.Nil(t, s.buckets, "options after a failing one must not run")
}

func TestApply_SkipsNil(t *testing.T) {
	s := &testSettings{}

	require.NoError(t, Apply[*testSettings](s, nil, withTarget(10), nil))
	require.Equal(t, 10, s.target)
	require.NoError(t, Apply[*testSettings](s))
}
