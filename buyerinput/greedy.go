package buyerinput

import (
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/optimization"
)

const (
	// PayloadUtilizationGoal is the share of each budget the greedy creator aims to fill.
	PayloadUtilizationGoal = 0.90
	// MinimumCustomAudienceBytes is the smallest budget worth trying another audience in.
	MinimumCustomAudienceBytes = 64

	// byteCeiling rounds truncated float estimates up.
	byteCeiling = 1
)

// PerBuyerLimitsGreedy fits each buyer under its own seller-declared target.
//
// Only buyers named in the per-buyer configurations take part. When the targets add up to more
// than the global budget they are scaled down proportionally. Sizes are estimated from a
// per-buyer compression ratio; if the real compressed total still overflows, the lowest priority
// audiences are dropped and the inputs are recompressed once.
type PerBuyerLimitsGreedy struct {
	codec               compress.Compressor
	maxSizeBytes        int
	limits              map[string]int
	signalsMaxSizeBytes int
	logger              zerolog.Logger
}

var _ Creator = (*PerBuyerLimitsGreedy)(nil)

// NewPerBuyerLimitsGreedy creates the per-buyer creator for octx.
//
// Signals are only considered when the global budget exceeds signalsMaxSizeBytes and the buyer's
// limit is at least signalsMaxSizeBytes.
func NewPerBuyerLimitsGreedy(
	codec compress.Compressor,
	octx optimization.Context,
	signalsMaxSizeBytes int,
	logger zerolog.Logger,
) *PerBuyerLimitsGreedy {
	return &PerBuyerLimitsGreedy{
		codec:               codec,
		maxSizeBytes:        octx.MaxBuyerInputSizeBytes(),
		limits:              perBuyerLimits(octx.PerBuyerConfigurations(), octx.MaxBuyerInputSizeBytes()),
		signalsMaxSizeBytes: signalsMaxSizeBytes,
		logger:              logger,
	}
}

// Version returns format.CreatorPerBuyerLimitsGreedy.
func (c *PerBuyerLimitsGreedy) Version() format.CreatorVersion {
	return format.CreatorPerBuyerLimitsGreedy
}

// Limits returns a copy of the effective per-buyer limits.
func (c *PerBuyerLimitsGreedy) Limits() map[string]int {
	return maps.Clone(c.limits)
}

// perBuyerLimits keeps the targets as they are when they fit maxSize together, and otherwise
// shares maxSize between buyers in proportion to their targets.
func perBuyerLimits(configs []optimization.PerBuyerConfiguration, maxSize int) map[string]int {
	limits := make(map[string]int, len(configs))
	sum := 0
	for _, cfg := range configs {
		sum += cfg.TargetInputSizeBytes
	}

	for _, cfg := range configs {
		if sum <= maxSize {
			limits[cfg.Buyer] = cfg.TargetInputSizeBytes
		} else {
			limits[cfg.Buyer] = int(float64(cfg.TargetInputSizeBytes) / float64(sum) * float64(maxSize))
		}
	}

	return limits
}

// greedyState is the working set of one Create call.
type greedyState struct {
	buyers    []string
	limits    map[string]int
	ratios    map[string]float64
	audiences map[string][]CustomAudience // candidates per buyer, highest priority first
	inputs    map[string]*BuyerInput
	dropped   bool
}

func (s *greedyState) estimate(buyer string, size int) int {
	return int(float64(size)*s.ratios[buyer]) + byteCeiling
}

// Create builds and compresses the per-buyer inputs.
func (c *PerBuyerLimitsGreedy) Create(data Data) (Result, error) {
	st := &greedyState{
		buyers:    slices.Sorted(maps.Keys(c.limits)),
		limits:    maps.Clone(c.limits),
		ratios:    make(map[string]float64, len(c.limits)),
		audiences: make(map[string][]CustomAudience, len(c.limits)),
		inputs:    make(map[string]*BuyerInput, len(c.limits)),
	}

	for _, buyer := range st.buyers {
		cas := slices.Clone(data.CustomAudiences[buyer])
		for i := range cas {
			cas[i].Buyer = buyer
		}
		slices.SortStableFunc(cas, byPriority)
		st.audiences[buyer] = cas
		st.inputs[buyer] = &BuyerInput{}

		full := data.Full(buyer)
		ratio, err := compressionRatio(c.codec, &full)
		if err != nil {
			return Result{}, err
		}
		st.ratios[buyer] = ratio
	}

	signalBytes := c.addSignals(st, data)
	c.addAudiences(st, signalBytes)

	res, err := compressInputs(c.codec, st.inputs)
	if err != nil {
		return Result{}, err
	}

	if total := res.TotalSize(); total > c.maxSizeBytes {
		c.logger.Debug().Int("overflow_bytes", total-c.maxSizeBytes).Msg("truncating custom audiences")
		c.truncate(st, total-c.maxSizeBytes)

		res, err = compressInputs(c.codec, st.inputs)
		if err != nil {
			return Result{}, err
		}
		res.Recompressions = 1
	}

	switch {
	case res.TotalSize() > c.maxSizeBytes:
		c.logger.Warn().
			Int("max_size_bytes", c.maxSizeBytes).
			Int("size_bytes", res.TotalSize()).
			Msg("buyer inputs still exceed the seller budget after truncation")
		res.Outcome = OutcomeDegraded
	case st.dropped || res.Recompressions > 0:
		res.Outcome = OutcomeTruncatedForRequestedMax
	default:
		res.Outcome = OutcomeWithinRequestedMax
	}

	return res, nil
}

// addSignals adds each allowed buyer's signals when its limit leaves room for them, charging the
// estimated compressed size against the buyer's limit. It returns the estimated bytes used.
func (c *PerBuyerLimitsGreedy) addSignals(st *greedyState, data Data) int {
	if c.maxSizeBytes <= c.signalsMaxSizeBytes {
		for _, buyer := range st.buyers {
			if _, ok := data.Signals[buyer]; ok {
				st.dropped = true
			}
		}

		return 0
	}

	used := 0
	for _, buyer := range st.buyers {
		sig, ok := data.Signals[buyer]
		if !ok {
			continue
		}
		if st.limits[buyer] < c.signalsMaxSizeBytes || !signalsAllowed(sig, c.signalsMaxSizeBytes) {
			c.logger.Debug().Str("buyer", buyer).Msg("not enough space for protected app signals")
			st.dropped = true

			continue
		}

		st.inputs[buyer].ProtectedAppSignals = &sig
		est := st.estimate(buyer, len(sig.Payload))
		st.limits[buyer] -= est
		used += est
	}

	return used
}

// addAudiences fills each buyer up to PayloadUtilizationGoal of its limit, then spends leftover
// global space on the skipped audiences in round-robin order.
func (c *PerBuyerLimitsGreedy) addAudiences(st *greedyState, used int) {
	if c.maxSizeBytes <= 0 {
		for _, buyer := range st.buyers {
			if len(st.audiences[buyer]) > 0 {
				st.dropped = true
			}
		}

		return
	}

	remaining := make(map[string][]CustomAudience, len(st.buyers))
	for _, buyer := range st.buyers {
		limit := int(float64(st.limits[buyer]) * PayloadUtilizationGoal)
		cas := st.audiences[buyer]

	candidates:
		for i, ca := range cas {
			est := st.estimate(buyer, ca.Size())
			switch {
			case limit >= est && used+est <= c.maxSizeBytes:
				used += est
				limit -= est
				st.inputs[buyer].CustomAudiences = append(st.inputs[buyer].CustomAudiences, ca)
			case limit > MinimumCustomAudienceBytes:
				remaining[buyer] = append(remaining[buyer], ca)
			default:
				// no room for anything else, keep the rest for the leftover pass
				remaining[buyer] = append(remaining[buyer], cas[i:]...)
				break candidates
			}
		}
	}

	if float64(used) <= float64(c.maxSizeBytes)*PayloadUtilizationGoal {
		c.fillRemaining(st, roundRobin(st.buyers, remaining), used)
	}

	for _, buyer := range st.buyers {
		if len(st.inputs[buyer].CustomAudiences) < len(st.audiences[buyer]) {
			st.dropped = true
		}
	}
}

// fillRemaining adds audiences while the estimated total stays under the utilization goal.
func (c *PerBuyerLimitsGreedy) fillRemaining(st *greedyState, candidates []CustomAudience, used int) {
	goal := int(float64(c.maxSizeBytes) * PayloadUtilizationGoal)
	for _, ca := range candidates {
		est := st.estimate(ca.Buyer, ca.Size())
		if used+est < goal {
			used += est
			st.inputs[ca.Buyer].CustomAudiences = append(st.inputs[ca.Buyer].CustomAudiences, ca)

			continue
		}
		if used >= goal-MinimumCustomAudienceBytes {
			break
		}
	}
}

// truncate drops the lowest priority audience of each buyer in turn until the estimated overflow,
// padded to the utilization goal, is recovered. Every buyer keeps at least one audience.
func (c *PerBuyerLimitsGreedy) truncate(st *greedyState, overflow int) {
	for _, buyer := range st.buyers {
		slices.SortStableFunc(st.inputs[buyer].CustomAudiences, byPriority)
	}

	remaining := overflow + int(float64(c.maxSizeBytes)*(1-PayloadUtilizationGoal)) + byteCeiling
	for remaining > 0 {
		removed := false
		for _, buyer := range st.buyers {
			if remaining <= 0 {
				break
			}
			in := st.inputs[buyer]
			last := len(in.CustomAudiences) - 1
			if last <= 0 {
				continue
			}

			ca := in.CustomAudiences[last]
			in.CustomAudiences = in.CustomAudiences[:last]
			remaining -= st.estimate(buyer, ca.Size())
			removed = true
			st.dropped = true
		}
		if !removed {
			return
		}
	}
}

// roundRobin interleaves the per-buyer lists: the first audience of every buyer, then the second,
// and so on.
func roundRobin(buyers []string, perBuyer map[string][]CustomAudience) []CustomAudience {
	var out []CustomAudience
	for i := 0; ; i++ {
		added := false
		for _, buyer := range buyers {
			if i < len(perBuyer[buyer]) {
				out = append(out, perBuyer[buyer][i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
