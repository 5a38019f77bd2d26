package buyerinput

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/format"
)

const (
	buyer1 = "buyer1.example"
	buyer2 = "buyer2.example"
	buyer3 = "buyer3.example"
)

func gzipCodec(t *testing.T) compress.Codec {
	t.Helper()
	codec, err := compress.GetCompressor(format.CompressorGzip)
	require.NoError(t, err)

	return codec
}

// randomSignals returns n hex characters that compress poorly.
func randomSignals(rng *rand.Rand, n int) string {
	b := make([]byte, (n+1)/2)
	rng.Read(b)

	return hex.EncodeToString(b)[:n]
}

func makeAudience(rng *rand.Rand, buyer string, i int, signalBytes int) CustomAudience {
	return CustomAudience{
		Buyer:              buyer,
		Owner:              "com.example.app",
		Name:               fmt.Sprintf("%s-ca-%03d", buyer, i),
		Priority:           float64(i % 10),
		UserBiddingSignals: randomSignals(rng, signalBytes),
		BiddingSignalsKeys: []string{"key-a", fmt.Sprintf("key-%d", i)},
		AdRenderIDs:        []string{fmt.Sprintf("ad-%d", i)},
	}
}

func bulkAudiences(seed int64, buyers []string, perBuyer, signalBytes int) []CustomAudience {
	rng := rand.New(rand.NewSource(seed))
	var out []CustomAudience
	for _, buyer := range buyers {
		for i := 0; i < perBuyer; i++ {
			out = append(out, makeAudience(rng, buyer, i, signalBytes))
		}
	}

	return out
}

func signalsFor(seed int64, buyers []string, size int) []EncodedSignals {
	rng := rand.New(rand.NewSource(seed))
	out := make([]EncodedSignals, 0, len(buyers))
	for _, buyer := range buyers {
		payload := make([]byte, size)
		rng.Read(payload)
		out = append(out, EncodedSignals{Buyer: buyer, Version: 2, Payload: payload})
	}

	return out
}

// decodeInputs decompresses and decodes every compressed buyer input of res.
func decodeInputs(t *testing.T, codec compress.Codec, inputs map[string][]byte) map[string]BuyerInput {
	t.Helper()
	out := make(map[string]BuyerInput, len(inputs))
	for buyer, compressed := range inputs {
		raw, err := codec.Decompress(compressed)
		require.NoError(t, err)

		var in BuyerInput
		require.NoError(t, in.Unmarshal(raw))
		out[buyer] = in
	}

	return out
}
