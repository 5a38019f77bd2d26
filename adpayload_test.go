package adpayload

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/adpayload/buyerinput"
	"github.com/arloliu/adpayload/config"
	"github.com/arloliu/adpayload/encryption"
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/frame"
	"github.com/arloliu/adpayload/internal/hash"
	"github.com/arloliu/adpayload/metrics"
	"github.com/arloliu/adpayload/optimization"
)

const (
	buyerA = "a.buyer.example"
	buyerB = "b.buyer.example"
	buyerC = "c.buyer.example"
)

func testSource(perBuyer, signalBytes int) *buyerinput.MemorySource {
	rng := rand.New(rand.NewSource(42))
	var audiences []buyerinput.CustomAudience
	for _, buyer := range []string{buyerA, buyerB, buyerC} {
		for i := 0; i < perBuyer; i++ {
			raw := make([]byte, signalBytes/2)
			rng.Read(raw)
			audiences = append(audiences, buyerinput.CustomAudience{
				Buyer:              buyer,
				Owner:              "com.example.app",
				Name:               fmt.Sprintf("ca-%03d", i),
				Priority:           float64(i % 7),
				UserBiddingSignals: hex.EncodeToString(raw),
				AdRenderIDs:        []string{fmt.Sprintf("ad-%d", i)},
			})
		}
	}
	signals := []buyerinput.EncodedSignals{{Buyer: buyerB, Version: 1, Payload: []byte("app-signals")}}

	return buyerinput.NewMemorySource(audiences, signals)
}

func fixedID(id string) Option {
	return WithGenerationIDFunc(func() string { return id })
}

func sellerConfig(maxBytes int) *optimization.SellerConfiguration {
	return &optimization.SellerConfiguration{
		MaximumPayloadSizeBytes: maxBytes,
		PerBuyerConfigurations: []optimization.PerBuyerConfiguration{
			{Buyer: buyerA, TargetInputSizeBytes: maxBytes / 2},
			{Buyer: buyerB, TargetInputSizeBytes: maxBytes / 2},
		},
	}
}

func optimizedConfig(creator format.CreatorVersion) config.Config {
	cfg := config.Default()
	cfg.FormatterVersion = format.FormatterExactSize
	cfg.SellerConfigurationEnabled = true
	cfg.CreatorVersion = creator

	return cfg
}

type recordingSink struct {
	mu            sync.Mutex
	inputs        []metrics.BuyerInputs
	optimizations []metrics.Optimization
	frames        []metrics.Frame
}

func (r *recordingSink) ObserveBuyerInputs(o metrics.BuyerInputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, o)
}

func (r *recordingSink) ObserveOptimization(o metrics.Optimization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.optimizations = append(r.optimizations, o)
}

func (r *recordingSink) ObserveFrame(o metrics.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, o)
}

func TestBuild_WithoutSeller(t *testing.T) {
	b, err := New(testSource(5, 32), fixedID("gen-1"))
	require.NoError(t, err)

	res, err := b.Build(context.Background(), Request{PublisherName: "news.example", EnableDebugReporting: true})
	require.NoError(t, err)

	require.Equal(t, "gen-1", res.GenerationID)
	require.Equal(t, []string{buyerA, buyerB, buyerC}, res.Buyers)
	require.Equal(t, buyerinput.OutcomeNotApplied, res.Outcome)
	require.Equal(t, format.CreatorNoOptimizations, res.CreatorVersion)
	require.False(t, res.Context.OptimizationsEnabled())
	require.Contains(t, frame.DefaultBucketSizes, len(res.Frame))
	require.Nil(t, res.Message)

	opened, err := b.Open(res.Frame)
	require.NoError(t, err)
	require.True(t, opened.Inspection.PaddingClean)
	require.Equal(t, format.FormatterV0, opened.Inspection.Header.FormatterVersion)
	require.Equal(t, "gen-1", opened.Auction.GenerationID)
	require.Equal(t, "news.example", opened.Auction.PublisherName)
	require.True(t, opened.Auction.EnableDebugReporting)
	require.Len(t, opened.BuyerInputs, 3)
	require.Len(t, opened.BuyerInputs[buyerA].CustomAudiences, 5)
	require.NotNil(t, opened.BuyerInputs[buyerB].ProtectedAppSignals)
	require.Equal(t, []byte("app-signals"), opened.BuyerInputs[buyerB].ProtectedAppSignals.Payload)
	require.Nil(t, opened.BuyerInputs[buyerA].ProtectedAppSignals)
}

func TestBuild_ExactSizeWithSellerBudget(t *testing.T) {
	const maxBytes = 4096

	for _, creator := range []format.CreatorVersion{format.CreatorSellerPayloadMax, format.CreatorPerBuyerLimitsGreedy} {
		t.Run(creator.String(), func(t *testing.T) {
			b, err := New(testSource(100, 64), WithConfig(optimizedConfig(creator)), fixedID("gen-2"))
			require.NoError(t, err)

			res, err := b.Build(context.Background(), Request{Seller: sellerConfig(maxBytes), PublisherName: "news.example"})
			require.NoError(t, err)

			require.Len(t, res.Frame, maxBytes)
			require.Equal(t, creator, res.CreatorVersion)
			require.Equal(t, buyerinput.OutcomeTruncatedForRequestedMax, res.Outcome)
			require.True(t, res.Context.OptimizationsEnabled())
			require.NotContains(t, res.Buyers, buyerC)

			opened, err := Open(res.Frame)
			require.NoError(t, err)
			require.Equal(t, format.FormatterExactSize, opened.Inspection.Header.FormatterVersion)
			require.True(t, opened.Inspection.PaddingClean)
			require.NotContains(t, opened.BuyerInputs, buyerC)
			for _, buyer := range res.Buyers {
				require.NotEmpty(t, opened.BuyerInputs[buyer].CustomAudiences)
				require.Less(t, len(opened.BuyerInputs[buyer].CustomAudiences), 100)
			}
		})
	}
}

func TestBuild_ConcurrentExactSize(t *testing.T) {
	const (
		maxBytes   = 4096
		goroutines = 16
		iterations = 4
	)

	for _, creator := range []format.CreatorVersion{format.CreatorSellerPayloadMax, format.CreatorPerBuyerLimitsGreedy} {
		t.Run(creator.String(), func(t *testing.T) {
			b, err := New(testSource(100, 64), WithConfig(optimizedConfig(creator)))
			require.NoError(t, err)

			var wg sync.WaitGroup
			errCh := make(chan error, goroutines*iterations)
			sizes := make(chan int, goroutines*iterations)
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < iterations; i++ {
						res, err := b.Build(context.Background(), Request{
							Seller:        sellerConfig(maxBytes),
							PublisherName: fmt.Sprintf("pub-%d.example", g),
						})
						if err != nil {
							errCh <- err
							continue
						}
						if _, err := Open(res.Frame); err != nil {
							errCh <- err
							continue
						}
						sizes <- len(res.Frame)
					}
				}(g)
			}
			wg.Wait()
			close(errCh)
			close(sizes)

			for err := range errCh {
				require.NoError(t, err)
			}
			count := 0
			for size := range sizes {
				require.Equal(t, maxBytes, size)
				count++
			}
			require.Equal(t, goroutines*iterations, count)
		})
	}
}

func TestBuild_ExactSizeFallsBackWithoutSeller(t *testing.T) {
	b, err := New(testSource(3, 16), WithConfig(optimizedConfig(format.CreatorSellerPayloadMax)))
	require.NoError(t, err)

	res, err := b.Build(context.Background(), Request{})
	require.NoError(t, err)
	require.Empty(t, res.Buyers, "no seller means an empty allow-list")

	h, err := frame.ParseHeader(res.Frame)
	require.NoError(t, err)
	require.Equal(t, format.FormatterExcessiveMaxSize, h.FormatterVersion)
	require.Len(t, res.Frame, 1024)
}

func TestBuild_Encrypted(t *testing.T) {
	pub, priv, err := encryption.GenerateKeyPair()
	require.NoError(t, err)

	b, err := New(testSource(4, 32), WithEncryptor(encryption.NewEncryptor(9, pub)))
	require.NoError(t, err)

	res, err := b.Build(context.Background(), Request{PublisherName: "news.example"})
	require.NoError(t, err)
	require.NotNil(t, res.Message)

	plain, err := encryption.NewDecryptor(map[uint8]encryption.PrivateKey{9: priv}).Decrypt(res.Message)
	require.NoError(t, err)
	require.True(t, bytes.Equal(res.Frame, plain))
}

func TestBuild_Metrics(t *testing.T) {
	sink := &recordingSink{}
	b, err := New(testSource(100, 64),
		WithConfig(optimizedConfig(format.CreatorSellerPayloadMax)),
		WithMetrics(sink),
	)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), Request{Seller: sellerConfig(4096)})
	require.NoError(t, err)

	require.Len(t, sink.inputs, 1)
	require.Equal(t, "SellerPayloadMax", sink.inputs[0].Creator)
	require.Equal(t, len(res.Buyers), sink.inputs[0].Buyers)
	require.Len(t, sink.optimizations, 1)
	require.Equal(t, res.Outcome.String(), sink.optimizations[0].Outcome)
	require.Equal(t, []metrics.Frame{{Formatter: "ExactSize", SizeBytes: 4096}}, sink.frames)
}

func TestBuild_PrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	b, err := New(testSource(2, 16), WithMetrics(sink))
	require.NoError(t, err)
	_, err = b.Build(context.Background(), Request{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.True(t, slices.Contains(names, "adpayload_optimization_outcomes_total"))
	require.True(t, slices.Contains(names, "adpayload_frame_size_bytes"))
}

func TestBuild_LogsDigest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	b, err := New(testSource(2, 16), WithLogger(logger), fixedID("gen-3"))
	require.NoError(t, err)

	res, err := b.Build(context.Background(), Request{})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "built request frame")
	require.Contains(t, out, `"generation_id":"gen-3"`)
	require.Contains(t, out, hash.DigestString(res.Frame))
}

func TestBuild_CanceledContext(t *testing.T) {
	b, err := New(testSource(2, 16))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Build(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	bad := config.Default()
	bad.CompressorVersion = 9
	_, err = New(testSource(1, 8), WithConfig(bad))
	require.ErrorIs(t, err, errs.ErrUnsupportedCompressorVersion)

	_, err = New(testSource(1, 8), WithMetrics(nil))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)

	_, err = New(testSource(1, 8), WithGenerationIDFunc(nil))
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestBuild_GenerationIDsAreUUIDs(t *testing.T) {
	b, err := New(testSource(1, 8))
	require.NoError(t, err)

	first, err := b.Build(context.Background(), Request{})
	require.NoError(t, err)
	second, err := b.Build(context.Background(), Request{})
	require.NoError(t, err)

	require.Len(t, first.GenerationID, 36)
	require.NotEqual(t, first.GenerationID, second.GenerationID)
}

func TestOpen_Errors(t *testing.T) {
	b, err := New(testSource(2, 16))
	require.NoError(t, err)
	res, err := b.Build(context.Background(), Request{})
	require.NoError(t, err)

	tampered := slices.Clone(res.Frame)
	tampered[1] = 0xff
	_, err = Open(tampered)
	require.ErrorIs(t, err, errs.ErrDataSizeMismatch)

	_, err = Open(res.Frame[:3])
	require.ErrorIs(t, err, errs.ErrDataSizeMismatch)
}
