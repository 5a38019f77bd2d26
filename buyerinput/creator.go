package buyerinput

import (
	"fmt"

	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/format"
)

// Outcome classifies how a creator fit the buyer inputs into the budget.
type Outcome uint8

const (
	// OutcomeNotApplied means no size budget was applied.
	OutcomeNotApplied Outcome = iota
	// OutcomeWithinRequestedMax means every candidate fit without trimming.
	OutcomeWithinRequestedMax
	// OutcomeTruncatedForRequestedMax means candidates were dropped to fit the budget.
	OutcomeTruncatedForRequestedMax
	// OutcomeDegraded means the budget could not be met and the closest packing was kept.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotApplied:
		return "NotApplied"
	case OutcomeWithinRequestedMax:
		return "WithinRequestedMax"
	case OutcomeTruncatedForRequestedMax:
		return "TruncatedForRequestedMax"
	case OutcomeDegraded:
		return "Degraded"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Result is the output of one Create call.
type Result struct {
	// Inputs maps buyer to its compressed BuyerInput. Buyers with nothing included are absent.
	Inputs map[string][]byte
	// Outcome reports how the budget was met.
	Outcome Outcome
	// Recompressions counts compression passes after the first one.
	Recompressions int
	// CustomAudiences counts the audiences included across all buyers.
	CustomAudiences int
	// UncompressedSize is the total size of the serialized inputs before compression.
	UncompressedSize int
}

// TotalSize returns the sum of all compressed input sizes.
func (r *Result) TotalSize() int {
	n := 0
	for _, in := range r.Inputs {
		n += len(in)
	}

	return n
}

// Creator builds the compressed per-buyer inputs for one request.
//
// A Creator is created per request from an optimization.Context and is not reused.
type Creator interface {
	Version() format.CreatorVersion
	Create(data Data) (Result, error)
}

// NoOptimizations compresses every buyer's complete input independently.
type NoOptimizations struct {
	codec compress.Compressor
}

var _ Creator = (*NoOptimizations)(nil)

// NewNoOptimizations creates a creator that applies no size budget.
func NewNoOptimizations(codec compress.Compressor) *NoOptimizations {
	return &NoOptimizations{codec: codec}
}

// Version returns format.CreatorNoOptimizations.
func (c *NoOptimizations) Version() format.CreatorVersion {
	return format.CreatorNoOptimizations
}

// Create compresses the full input of every buyer in data that has audiences or signals.
func (c *NoOptimizations) Create(data Data) (Result, error) {
	inputs := make(map[string]*BuyerInput, len(data.Buyers))
	for _, buyer := range data.Buyers {
		in := data.Full(buyer)
		inputs[buyer] = &in
	}

	packed, err := compressInputs(c.codec, inputs)
	if err != nil {
		return Result{}, err
	}
	packed.Outcome = OutcomeNotApplied

	return packed, nil
}

// compressInputs compresses every non-empty input. Outcome and Recompressions are left for the
// caller.
func compressInputs(codec compress.Compressor, inputs map[string]*BuyerInput) (Result, error) {
	res := Result{Inputs: make(map[string][]byte, len(inputs))}
	for buyer, in := range inputs {
		if in.Empty() {
			continue
		}

		raw := in.Marshal()
		out, err := codec.Compress(raw)
		if err != nil {
			return Result{}, fmt.Errorf("compress buyer input of %s: %w", buyer, err)
		}

		res.Inputs[buyer] = out
		res.CustomAudiences += len(in.CustomAudiences)
		res.UncompressedSize += len(raw)
	}

	return res, nil
}

// compressionRatio compresses in once and returns compressed/uncompressed size. Empty input
// reports 1.0.
func compressionRatio(codec compress.Compressor, in *BuyerInput) (float64, error) {
	raw := in.Marshal()
	if len(raw) == 0 {
		return 1.0, nil
	}

	out, err := codec.Compress(raw)
	if err != nil {
		return 0, err
	}

	return compress.Stats{OriginalSize: len(raw), CompressedSize: len(out)}.Ratio(), nil
}

// signalsAllowed reports whether signals fit the per-buyer signals cap. A non-positive cap
// disables the check.
func signalsAllowed(sig EncodedSignals, maxSizeBytes int) bool {
	return maxSizeBytes <= 0 || len(sig.Payload) <= maxSizeBytes
}
