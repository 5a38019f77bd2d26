package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNoOp(t *testing.T) {
	var s Sink = NoOp{}
	s.ObserveBuyerInputs(BuyerInputs{Creator: "NoOptimizations", Buyers: 3})
	s.ObserveOptimization(Optimization{Creator: "NoOptimizations", Outcome: "NotApplied"})
	s.ObserveFrame(Frame{Formatter: "V0", SizeBytes: 1024})
}

func TestPrometheus_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.ObserveBuyerInputs(BuyerInputs{Creator: "SellerPayloadMax", Buyers: 2, CustomAudiences: 40, UncompressedBytes: 9000, CompressedBytes: 3000})
	p.ObserveOptimization(Optimization{Creator: "SellerPayloadMax", Outcome: "TruncatedForRequestedMax", Recompressions: 3})
	p.ObserveOptimization(Optimization{Creator: "SellerPayloadMax", Outcome: "TruncatedForRequestedMax", Recompressions: 2})
	p.ObserveFrame(Frame{Formatter: "ExactSize", SizeBytes: 4096})
	p.ObserveFrame(Frame{Formatter: "ExactSize", Failed: true})

	require.InDelta(t, 2, testutil.ToFloat64(p.outcomes.WithLabelValues("SellerPayloadMax", "TruncatedForRequestedMax")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.formatterErrors.WithLabelValues("ExactSize")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(p.frameSize))
	require.Equal(t, 1, testutil.CollectAndCount(p.compressed))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "adpayload_optimization_outcomes_total")
	require.Contains(t, names, "adpayload_frame_size_bytes")
	require.Contains(t, names, "adpayload_buyer_input_custom_audiences")
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	require.Error(t, err)
}
