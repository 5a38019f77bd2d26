package buyerinput

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/optimization"
)

// SellerPayloadMax fits the compressed inputs of all buyers under one global budget.
//
// Candidates are ranked once: every buyer's protected app signals first, then custom audiences by
// descending priority. The creator searches for the longest ranked prefix whose compressed size
// fits the budget. Each search step estimates the prefix length from the compression ratio
// observed on the previous pass, then recompresses; the search stops when the boundary between
// fitting and overflowing prefixes is found or the recompression budget is spent.
type SellerPayloadMax struct {
	codec               compress.Compressor
	maxSizeBytes        int
	maxRecompressions   int
	signalsMaxSizeBytes int
	logger              zerolog.Logger
}

var _ Creator = (*SellerPayloadMax)(nil)

// NewSellerPayloadMax creates the global-budget creator for octx.
//
// Parameters:
//   - codec: Compressor applied to each serialized BuyerInput
//   - octx: Request budget; only MaxBuyerInputSizeBytes is used
//   - maxRecompressions: Number of search passes after the initial full compression
//   - signalsMaxSizeBytes: Signals larger than this are never included (<= 0 disables the cap)
//   - logger: Receives the degraded-fit warning
func NewSellerPayloadMax(
	codec compress.Compressor,
	octx optimization.Context,
	maxRecompressions int,
	signalsMaxSizeBytes int,
	logger zerolog.Logger,
) *SellerPayloadMax {
	return &SellerPayloadMax{
		codec:               codec,
		maxSizeBytes:        octx.MaxBuyerInputSizeBytes(),
		maxRecompressions:   max(maxRecompressions, 0),
		signalsMaxSizeBytes: signalsMaxSizeBytes,
		logger:              logger,
	}
}

// Version returns format.CreatorSellerPayloadMax.
func (c *SellerPayloadMax) Version() format.CreatorVersion {
	return format.CreatorSellerPayloadMax
}

// candidate is one unit the creator may include: either a buyer's signals or one audience.
type candidate struct {
	buyer    string
	audience *CustomAudience
	signals  *EncodedSignals
	size     int // serialized size inside the BuyerInput, including tag and length prefix
}

// Create returns the longest fitting prefix of ranked candidates.
//
// Candidates that overflow the budget on their own are skipped before the search, so a large
// signals blob ranked first never starves the audiences behind it. Skipped signals do not make
// the result truncated; skipped audiences do. A non-positive budget yields an empty map. Running out of recompression passes before any
// non-empty prefix is known to fit is not an error: the smallest packing tried is returned with
// OutcomeDegraded.
func (c *SellerPayloadMax) Create(data Data) (Result, error) {
	if c.maxSizeBytes <= 0 {
		return Result{Inputs: map[string][]byte{}, Outcome: OutcomeWithinRequestedMax}, nil
	}

	items := c.rank(data)
	truncated := len(items) < rankedCandidateCount(data)
	items, droppedAudiences, err := c.withoutUnplaceable(items)
	if err != nil {
		return Result{}, err
	}
	truncated = truncated || droppedAudiences

	full, err := c.pack(items, len(items))
	if err != nil {
		return Result{}, err
	}
	if full.TotalSize() <= c.maxSizeBytes {
		full.Outcome = OutcomeWithinRequestedMax
		if truncated {
			full.Outcome = OutcomeTruncatedForRequestedMax
		}

		return full, nil
	}

	cumulative := make([]int, len(items)+1)
	for i, item := range items {
		cumulative[i+1] = cumulative[i] + item.size
	}

	// lo is the longest prefix known to fit, hi the shortest known to overflow.
	lo, hi := 0, len(items)
	best := Result{Inputs: map[string][]byte{}}
	closest := full
	ratio := observedRatio(full)
	passes := 0

	for passes < c.maxRecompressions && hi-lo > 1 {
		// aim below the budget until some non-empty prefix is known to fit
		target := c.maxSizeBytes
		if lo == 0 {
			target = int(float64(target) * PayloadUtilizationGoal)
		}
		k := estimatePrefix(cumulative, ratio, target)
		if k <= lo || k >= hi {
			k = lo + (hi-lo)/2
		}

		res, err := c.pack(items, k)
		if err != nil {
			return Result{}, err
		}
		passes++
		ratio = observedRatio(res)

		if res.TotalSize() <= c.maxSizeBytes {
			lo, best = k, res
		} else {
			hi = k
			if res.TotalSize() < closest.TotalSize() {
				closest = res
			}
		}
	}

	if lo == 0 && hi > 1 {
		c.logger.Warn().
			Int("max_size_bytes", c.maxSizeBytes).
			Int("closest_size_bytes", closest.TotalSize()).
			Int("recompressions", passes).
			Msg("buyer inputs do not fit the seller budget, keeping the closest packing")
		closest.Outcome = OutcomeDegraded
		closest.Recompressions = passes

		return closest, nil
	}

	best.Outcome = OutcomeTruncatedForRequestedMax
	best.Recompressions = passes

	return best, nil
}

// rank orders the candidates: signals of every buyer by buyer, then audiences by priority.
func (c *SellerPayloadMax) rank(data Data) []candidate {
	items := make([]candidate, 0, len(data.Buyers)+data.CustomAudienceCount())
	for _, buyer := range data.Buyers {
		sig, ok := data.Signals[buyer]
		if !ok {
			continue
		}
		if !signalsAllowed(sig, c.signalsMaxSizeBytes) {
			c.logger.Debug().Str("buyer", buyer).Int("size", len(sig.Payload)).
				Msg("encoded signals exceed the per-buyer cap")
			continue
		}
		items = append(items, candidate{
			buyer:   buyer,
			signals: &sig,
			size:    messageFieldSize(biProtectedAppSignalsField, len(sig.appendTo(nil))),
		})
	}

	var audiences []CustomAudience
	for _, buyer := range data.Buyers {
		for _, ca := range data.CustomAudiences[buyer] {
			ca.Buyer = buyer
			audiences = append(audiences, ca)
		}
	}
	slices.SortStableFunc(audiences, byPriority)
	for i := range audiences {
		items = append(items, candidate{
			buyer:    audiences[i].Buyer,
			audience: &audiences[i],
			size:     messageFieldSize(biCustomAudiencesField, audiences[i].Size()),
		})
	}

	return items
}

// withoutUnplaceable drops the candidates whose buyer input alone compresses past the budget.
// Only candidates at least half the budget in serialized size are compressed for the check, and
// those compressions are not counted as recompressions. The flag reports a dropped audience.
func (c *SellerPayloadMax) withoutUnplaceable(items []candidate) ([]candidate, bool, error) {
	kept := make([]candidate, 0, len(items))
	droppedAudiences := false
	for _, item := range items {
		if item.size*2 >= c.maxSizeBytes {
			alone, err := c.pack([]candidate{item}, 1)
			if err != nil {
				return nil, false, err
			}
			if alone.TotalSize() > c.maxSizeBytes {
				c.logger.Debug().
					Str("buyer", item.buyer).
					Bool("signals", item.signals != nil).
					Int("compressed_size", alone.TotalSize()).
					Msg("candidate alone exceeds the seller budget, skipping it")
				droppedAudiences = droppedAudiences || item.audience != nil

				continue
			}
		}
		kept = append(kept, item)
	}

	return kept, droppedAudiences, nil
}

// pack compresses the buyer inputs made of the first k candidates.
func (c *SellerPayloadMax) pack(items []candidate, k int) (Result, error) {
	inputs := make(map[string]*BuyerInput)
	for _, item := range items[:k] {
		in, ok := inputs[item.buyer]
		if !ok {
			in = &BuyerInput{}
			inputs[item.buyer] = in
		}
		if item.signals != nil {
			in.ProtectedAppSignals = item.signals
		} else {
			in.CustomAudiences = append(in.CustomAudiences, *item.audience)
		}
	}

	return compressInputs(c.codec, inputs)
}

func rankedCandidateCount(data Data) int {
	return len(data.Signals) + data.CustomAudienceCount()
}

// estimatePrefix returns the largest k whose estimated compressed size fits maxSize.
func estimatePrefix(cumulative []int, ratio float64, maxSize int) int {
	k, _ := slices.BinarySearchFunc(cumulative, maxSize, func(size, target int) int {
		if float64(size)*ratio <= float64(target) {
			return -1
		}

		return 1
	})

	return k - 1
}

func observedRatio(r Result) float64 {
	if r.UncompressedSize == 0 {
		return 1.0
	}

	return float64(r.TotalSize()) / float64(r.UncompressedSize)
}
