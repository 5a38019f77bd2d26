// Package adpayload builds the compressed, size-bucketed request frame a device sends to an
// auction service.
//
// A Build call runs the whole pipeline for one request:
//
//  1. measure the ProtectedAuctionInput without buyer inputs
//  2. derive the optimization context from the seller configuration
//  3. fetch custom audiences and app signals for the eligible buyers
//  4. compress each buyer input, fitting them under the seller budget when one is configured
//  5. encode the ProtectedAuctionInput and wrap it in a padded frame
//  6. optionally seal the frame for the auction service
//
// # Basic Usage
//
//	src := buyerinput.NewMemorySource(audiences, signals)
//	b, _ := adpayload.New(src, adpayload.WithConfig(cfg))
//
//	res, _ := b.Build(ctx, adpayload.Request{
//	    Seller:        &optimization.SellerConfiguration{MaximumPayloadSizeBytes: 8192},
//	    PublisherName: "news.example",
//	})
//	send(res.Frame)
//
// The frame is decoded back with Builder.Open. For fine-grained control use the compress,
// frame, optimization and buyerinput packages directly.
package adpayload

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/arloliu/adpayload/buyerinput"
	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/config"
	"github.com/arloliu/adpayload/encryption"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/frame"
	"github.com/arloliu/adpayload/internal/hash"
	"github.com/arloliu/adpayload/internal/options"
	"github.com/arloliu/adpayload/metrics"
	"github.com/arloliu/adpayload/optimization"
)

// Request carries the per-call inputs of Build.
type Request struct {
	// Seller is the seller's payload configuration. Nil means no seller budget.
	Seller               *optimization.SellerConfiguration
	PublisherName        string
	EnableDebugReporting bool
}

// Result is the output of one Build call.
type Result struct {
	GenerationID string
	// Frame is the padded plaintext frame.
	Frame []byte
	// Message is Frame sealed by the configured encryptor, or nil without one.
	Message []byte
	// Buyers lists, in ascending order, the buyers whose input made it into the frame.
	Buyers         []string
	CreatorVersion format.CreatorVersion
	Outcome        buyerinput.Outcome
	Recompressions int
	Context        optimization.Context
}

// Builder runs the payload pipeline. It is immutable and safe for concurrent use.
type Builder struct {
	cfg          config.Config
	factory      *buyerinput.Factory
	source       buyerinput.Source
	encryptor    encryption.Encryptor
	sink         metrics.Sink
	logger       zerolog.Logger
	generationID func() string
}

// New creates a Builder reading buyer data from src.
//
// Returns:
//   - *Builder: Configured builder
//   - error: the config validation error, or errs.ErrInvalidConfig for rejected options
func New(src buyerinput.Source, opts ...Option) (*Builder, error) {
	if src == nil {
		return nil, errors.New("adpayload: nil buyer input source")
	}

	s := defaultBuilderSettings()
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := compress.GetCompressor(s.cfg.CompressorVersion)
	if err != nil {
		return nil, err
	}

	factory, err := buyerinput.NewFactory(codec,
		buyerinput.WithSellerConfigurationEnabled(s.cfg.SellerConfigurationEnabled),
		buyerinput.WithCreatorVersion(s.cfg.CreatorVersion),
		buyerinput.WithMaxNumRecompressions(s.cfg.MaxNumRecompressions),
		buyerinput.WithPerBuyerSignalsMaxSizeBytes(s.cfg.PerBuyerSignalsMaxSizeBytes),
		buyerinput.WithFetchConcurrency(s.cfg.FetchConcurrency),
		buyerinput.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:          s.cfg,
		factory:      factory,
		source:       src,
		encryptor:    s.encryptor,
		sink:         s.sink,
		logger:       s.logger,
		generationID: s.generationID,
	}, nil
}

// Config returns the validated settings the builder runs with.
func (b *Builder) Config() config.Config {
	return b.cfg
}

// Build runs the pipeline for one request. Config.OverallTimeout, when set, bounds the call.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if b.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.OverallTimeout)
		defer cancel()
	}

	start := time.Now()
	pai := &buyerinput.ProtectedAuctionInput{
		GenerationID:         b.generationID(),
		PublisherName:        req.PublisherName,
		EnableDebugReporting: req.EnableDebugReporting,
	}

	current := pai.Size() + b.reservedEntryBytes(req.Seller)
	octx := b.factory.ArgumentsPreparer().Prepare(req.Seller, current)

	data, err := b.factory.DataFetcher(b.source).Fetch(ctx, octx)
	if err != nil {
		return nil, fmt.Errorf("fetch buyer data: %w", err)
	}

	creator, err := b.factory.Creator(octx)
	if err != nil {
		return nil, err
	}
	created, err := creator.Create(data)
	if err != nil {
		return nil, fmt.Errorf("create buyer inputs: %w", err)
	}

	creatorName := creator.Version().String()
	b.sink.ObserveBuyerInputs(metrics.BuyerInputs{
		Creator:           creatorName,
		Buyers:            len(created.Inputs),
		CustomAudiences:   created.CustomAudiences,
		UncompressedBytes: created.UncompressedSize,
		CompressedBytes:   created.TotalSize(),
	})
	b.sink.ObserveOptimization(metrics.Optimization{
		Creator:        creatorName,
		Outcome:        created.Outcome.String(),
		Recompressions: created.Recompressions,
	})

	pai.BuyerInputs = created.Inputs
	formatter, err := frame.NewFormatter(b.cfg.FormatterVersion, b.formatterOptions(octx, req.Seller)...)
	if err != nil {
		return nil, err
	}

	framed, err := formatter.Apply(pai.Marshal(), b.cfg.CompressorVersion)
	b.sink.ObserveFrame(metrics.Frame{
		Formatter: formatter.Version().String(),
		SizeBytes: len(framed),
		Failed:    err != nil,
	})
	if err != nil {
		return nil, fmt.Errorf("format payload: %w", err)
	}

	res := &Result{
		GenerationID:   pai.GenerationID,
		Frame:          framed,
		Buyers:         sortedKeys(created.Inputs),
		CreatorVersion: creator.Version(),
		Outcome:        created.Outcome,
		Recompressions: created.Recompressions,
		Context:        octx,
	}

	if b.encryptor != nil {
		res.Message, err = b.encryptor.Encrypt(ctx, framed)
		if err != nil {
			return nil, fmt.Errorf("encrypt frame: %w", err)
		}
	}

	b.logger.Debug().
		Str("generation_id", res.GenerationID).
		Str("creator", creatorName).
		Str("outcome", created.Outcome.String()).
		Int("buyers", len(res.Buyers)).
		Int("frame_bytes", len(framed)).
		Str("digest", hash.DigestString(framed)).
		Dur("elapsed", time.Since(start)).
		Msg("built request frame")

	return res, nil
}

// reservedEntryBytes returns the map entry overhead of every allow-listed buyer, so the buyer
// inputs plus their framing stay within the seller maximum.
func (b *Builder) reservedEntryBytes(seller *optimization.SellerConfiguration) int {
	if !b.factory.SellerConfigurationEnabled() || seller == nil {
		return 0
	}

	seen := make(map[string]struct{}, len(seller.PerBuyerConfigurations))
	n := 0
	for _, c := range seller.PerBuyerConfigurations {
		if _, ok := seen[c.Buyer]; ok {
			continue
		}
		seen[c.Buyer] = struct{}{}
		n += buyerinput.BuyerInputEntryOverhead(c.Buyer, max(seller.MaximumPayloadSizeBytes, 0))
	}

	return n
}

func (b *Builder) formatterOptions(octx optimization.Context, seller *optimization.SellerConfiguration) []frame.Option {
	opts := []frame.Option{frame.WithBucketSizes(b.cfg.BucketSizes...)}
	if b.cfg.FormatterVersion == format.FormatterExactSize && octx.OptimizationsEnabled() &&
		seller != nil && seller.MaximumPayloadSizeBytes > 0 {
		opts = append(opts, frame.WithTargetSize(seller.MaximumPayloadSizeBytes))
	}

	return opts
}

// Opened is a decoded request frame.
type Opened struct {
	Inspection frame.Inspection
	Auction    buyerinput.ProtectedAuctionInput
	// BuyerInputs holds the decompressed input of every buyer in Auction.
	BuyerInputs map[string]*buyerinput.BuyerInput
}

// Open decodes a plaintext frame produced by Build. The compressor is taken from the frame's
// meta byte, so frames built with other settings open too.
func (b *Builder) Open(framed []byte) (*Opened, error) {
	return Open(framed)
}

// Open decodes a plaintext request frame.
func Open(framed []byte) (*Opened, error) {
	insp, err := frame.Inspect(framed)
	if err != nil {
		return nil, err
	}

	codec, err := compress.GetCompressor(insp.Header.CompressorVersion)
	if err != nil {
		return nil, err
	}

	out := &Opened{Inspection: insp}
	if err := out.Auction.Unmarshal(insp.Payload); err != nil {
		return nil, fmt.Errorf("decode auction input: %w", err)
	}

	out.BuyerInputs = make(map[string]*buyerinput.BuyerInput, len(out.Auction.BuyerInputs))
	for buyer, compressed := range out.Auction.BuyerInputs {
		raw, err := codec.Decompress(compressed)
		if err != nil {
			return nil, fmt.Errorf("decompress input of %s: %w", buyer, err)
		}
		in := &buyerinput.BuyerInput{}
		if err := in.Unmarshal(raw); err != nil {
			return nil, fmt.Errorf("decode input of %s: %w", buyer, err)
		}
		out.BuyerInputs[buyer] = in
	}

	return out, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
