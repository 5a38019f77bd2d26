package optimization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sellerConfig() *SellerConfiguration {
	return &SellerConfiguration{
		MaximumPayloadSizeBytes: 4096,
		PerBuyerConfigurations: []PerBuyerConfiguration{
			{Buyer: "buyer-b", TargetInputSizeBytes: 2000},
			{Buyer: "buyer-a", TargetInputSizeBytes: 1000},
		},
	}
}

func requireZero(t *testing.T, c Context) {
	t.Helper()
	require.False(t, c.OptimizationsEnabled())
	require.Zero(t, c.MaxBuyerInputSizeBytes())
	require.Empty(t, c.PerBuyerConfigurations())
	require.Empty(t, c.Buyers())
}

func TestDisabled_IgnoresSeller(t *testing.T) {
	p := NewArgumentsPreparer(false)
	require.IsType(t, Disabled{}, p)

	requireZero(t, p.Prepare(nil, 0))
	requireZero(t, p.Prepare(sellerConfig(), 100))
}

func TestEnabled_NilSellerBehavesLikeDisabled(t *testing.T) {
	p := NewArgumentsPreparer(true)
	require.IsType(t, Enabled{}, p)

	requireZero(t, p.Prepare(nil, 100))
}

func TestEnabled_SubtractsHeaderAndCurrentSize(t *testing.T) {
	c := Enabled{}.Prepare(sellerConfig(), 91)

	require.True(t, c.OptimizationsEnabled())
	require.Equal(t, 4096-HeaderSizeBytes-91, c.MaxBuyerInputSizeBytes())
	require.Equal(t, []string{"buyer-a", "buyer-b"}, c.Buyers())
	require.Equal(t, []PerBuyerConfiguration{
		{Buyer: "buyer-a", TargetInputSizeBytes: 1000},
		{Buyer: "buyer-b", TargetInputSizeBytes: 2000},
	}, c.PerBuyerConfigurations())

	size, ok := c.TargetFor("buyer-b")
	require.True(t, ok)
	require.Equal(t, 2000, size)
	require.True(t, c.HasBuyer("buyer-a"))
	require.False(t, c.HasBuyer("buyer-c"))
}

func TestEnabled_NoRoomLeft(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		current int
	}{
		{"exactly header plus current", 100 + HeaderSizeBytes, 100},
		{"smaller than header", 3, 0},
		{"current exceeds max", 1000, 2000},
		{"zero max", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seller := sellerConfig()
			seller.MaximumPayloadSizeBytes = tt.max

			c := Enabled{}.Prepare(seller, tt.current)
			requireZero(t, c)
		})
	}
}

func TestEnabled_OneByteLeft(t *testing.T) {
	seller := &SellerConfiguration{MaximumPayloadSizeBytes: HeaderSizeBytes + 11}

	c := Enabled{}.Prepare(seller, 10)
	require.True(t, c.OptimizationsEnabled())
	require.Equal(t, 1, c.MaxBuyerInputSizeBytes())
	require.Empty(t, c.Buyers())
}

func TestContext_CopiesSellerConfiguration(t *testing.T) {
	seller := sellerConfig()
	c := Enabled{}.Prepare(seller, 0)

	seller.PerBuyerConfigurations[0].TargetInputSizeBytes = 1
	seller.PerBuyerConfigurations = append(seller.PerBuyerConfigurations, PerBuyerConfiguration{Buyer: "late"})

	size, _ := c.TargetFor("buyer-b")
	require.Equal(t, 2000, size)
	require.False(t, c.HasBuyer("late"))

	got := c.PerBuyerConfigurations()
	got[0].TargetInputSizeBytes = 7
	size, _ = c.TargetFor("buyer-a")
	require.Equal(t, 1000, size)
}

func TestNewContext_DuplicateBuyerLastWins(t *testing.T) {
	c := NewContext(true, -5, []PerBuyerConfiguration{
		{Buyer: "x", TargetInputSizeBytes: 1},
		{Buyer: "x", TargetInputSizeBytes: 2},
	})

	require.Zero(t, c.MaxBuyerInputSizeBytes())
	size, ok := c.TargetFor("x")
	require.True(t, ok)
	require.Equal(t, 2, size)
	require.Len(t, c.PerBuyerConfigurations(), 1)
}
