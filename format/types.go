package format

import "strconv"

type (
	CompressorVersion uint8
	FormatterVersion  uint8
	CreatorVersion    uint8
)

const (
	CompressorGzip CompressorVersion = 0 // CompressorGzip is the deflate-family reference codec.
	CompressorZstd CompressorVersion = 1 // CompressorZstd represents Zstandard compression.
	CompressorS2   CompressorVersion = 2 // CompressorS2 represents S2 compression.
	CompressorLZ4  CompressorVersion = 3 // CompressorLZ4 represents LZ4 block compression.

	FormatterV0               FormatterVersion = 0 // FormatterV0 uses fixed buckets and rejects oversized payloads.
	FormatterExcessiveMaxSize FormatterVersion = 1 // FormatterExcessiveMaxSize grows the largest bucket until the payload fits.
	FormatterExactSize        FormatterVersion = 2 // FormatterExactSize pads to a seller supplied target.

	CreatorNoOptimizations      CreatorVersion = 0 // CreatorNoOptimizations compresses every buyer input as-is.
	CreatorSellerPayloadMax     CreatorVersion = 1 // CreatorSellerPayloadMax fits all buyers under one global budget.
	CreatorPerBuyerLimitsGreedy CreatorVersion = 2 // CreatorPerBuyerLimitsGreedy fits each buyer under its own target.
)

// Meta byte layout limits.
const (
	MaxCompressorVersion = 1<<5 - 1 // 5 low bits of the meta byte
	MaxFormatterVersion  = 1<<3 - 1 // 3 high bits of the meta byte
)

func (c CompressorVersion) String() string {
	switch c {
	case CompressorGzip:
		return "Gzip"
	case CompressorZstd:
		return "Zstd"
	case CompressorS2:
		return "S2"
	case CompressorLZ4:
		return "LZ4"
	default:
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

func (f FormatterVersion) String() string {
	switch f {
	case FormatterV0:
		return "V0"
	case FormatterExcessiveMaxSize:
		return "ExcessiveMaxSize"
	case FormatterExactSize:
		return "ExactSize"
	default:
		return "Unknown(" + strconv.Itoa(int(f)) + ")"
	}
}

func (c CreatorVersion) String() string {
	switch c {
	case CreatorNoOptimizations:
		return "NoOptimizations"
	case CreatorSellerPayloadMax:
		return "SellerPayloadMax"
	case CreatorPerBuyerLimitsGreedy:
		return "PerBuyerLimitsGreedy"
	default:
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
}
