package buyerinput

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/adpayload/optimization"
)

func testSource() *MemorySource {
	buyers := []string{buyer1, buyer2, buyer3}
	src := NewMemorySource(bulkAudiences(3, buyers, 2, 8), signalsFor(3, []string{buyer1, buyer3}, 16))
	src.PutEncodedSignals(EncodedSignals{Buyer: "signals-only.example", Payload: []byte{1}})

	return src
}

func TestAllBuyersFetcher(t *testing.T) {
	data, err := NewAllBuyersFetcher(testSource(), 2).Fetch(context.Background(), optimization.Context{})
	require.NoError(t, err)

	require.Equal(t, []string{buyer1, buyer2, buyer3, "signals-only.example"}, data.Buyers)
	require.Len(t, data.CustomAudiences[buyer2], 2)
	require.Contains(t, data.Signals, buyer1)
	require.NotContains(t, data.Signals, buyer2)
	require.Equal(t, 6, data.CustomAudienceCount())
}

func TestAllowListFetcher(t *testing.T) {
	octx := optimization.NewContext(true, 1000, []optimization.PerBuyerConfiguration{
		{Buyer: buyer3, TargetInputSizeBytes: 100},
		{Buyer: buyer1, TargetInputSizeBytes: 100},
		{Buyer: "unknown.example", TargetInputSizeBytes: 100},
	})

	data, err := NewAllowListFetcher(testSource(), 0).Fetch(context.Background(), octx)
	require.NoError(t, err)

	require.Equal(t, []string{buyer1, buyer3}, data.Buyers)
	require.NotContains(t, data.CustomAudiences, buyer2)
	for _, ca := range data.CustomAudiences[buyer1] {
		require.Equal(t, buyer1, ca.Buyer)
	}
}

func TestAllowListFetcher_EmptyAllowList(t *testing.T) {
	data, err := NewAllowListFetcher(testSource(), 0).Fetch(context.Background(), optimization.Context{})
	require.NoError(t, err)
	require.Empty(t, data.Buyers)
	require.Zero(t, data.CustomAudienceCount())
}

type failingSource struct {
	*MemorySource
	failBuyer string
}

var errStore = errors.New("store unavailable")

func (s failingSource) CustomAudiences(ctx context.Context, buyer string) ([]CustomAudience, error) {
	if buyer == s.failBuyer {
		return nil, errStore
	}

	return s.MemorySource.CustomAudiences(ctx, buyer)
}

func TestFetcher_PropagatesSourceErrors(t *testing.T) {
	src := failingSource{MemorySource: testSource(), failBuyer: buyer2}

	_, err := NewAllBuyersFetcher(src, 1).Fetch(context.Background(), optimization.Context{})
	require.ErrorIs(t, err, errStore)
	require.Contains(t, err.Error(), buyer2)
}

func TestFetcher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAllBuyersFetcher(testSource(), 1).Fetch(ctx, optimization.Context{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewData_GroupsByBuyer(t *testing.T) {
	data := NewData(
		[]CustomAudience{{Buyer: buyer2, Name: "a"}, {Buyer: buyer1, Name: "b"}, {Buyer: buyer2, Name: "c"}},
		[]EncodedSignals{{Buyer: buyer3, Payload: []byte{1}}},
	)

	require.Equal(t, []string{buyer1, buyer2, buyer3}, data.Buyers)
	require.Len(t, data.CustomAudiences[buyer2], 2)

	full := data.Full(buyer3)
	require.Empty(t, full.CustomAudiences)
	require.NotNil(t, full.ProtectedAppSignals)
	require.False(t, full.Empty())
}
