package buyerinput

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/internal/options"
	"github.com/arloliu/adpayload/optimization"
)

// Defaults used by NewFactory.
const (
	DefaultMaxNumRecompressions        = 5
	DefaultPerBuyerSignalsMaxSizeBytes = 1024
)

// creatorKind is the closed set of buyer input creators.
type creatorKind uint8

const (
	creatorNoOptimizations creatorKind = iota + 1
	creatorSellerPayloadMax
	creatorPerBuyerLimitsGreedy
)

// creatorKinds maps every supported creator version to its implementation.
var creatorKinds = map[format.CreatorVersion]creatorKind{
	format.CreatorNoOptimizations:      creatorNoOptimizations,
	format.CreatorSellerPayloadMax:     creatorSellerPayloadMax,
	format.CreatorPerBuyerLimitsGreedy: creatorPerBuyerLimitsGreedy,
}

type factorySettings struct {
	sellerConfigurationEnabled  bool
	creatorVersion              format.CreatorVersion
	maxNumRecompressions        int
	perBuyerSignalsMaxSizeBytes int
	fetchConcurrency            int
	logger                      zerolog.Logger
}

// FactoryOption configures NewFactory.
type FactoryOption = options.Option[*factorySettings]

// WithSellerConfigurationEnabled turns seller-driven size optimization on for the deployment.
func WithSellerConfigurationEnabled(enabled bool) FactoryOption {
	return options.NoError(func(s *factorySettings) {
		s.sellerConfigurationEnabled = enabled
	})
}

// WithCreatorVersion selects the creator used when optimization is enabled.
func WithCreatorVersion(version format.CreatorVersion) FactoryOption {
	return options.NoError(func(s *factorySettings) {
		s.creatorVersion = version
	})
}

// WithMaxNumRecompressions sets the recompression budget of the SellerPayloadMax creator.
func WithMaxNumRecompressions(n int) FactoryOption {
	return options.New(func(s *factorySettings) error {
		if n < 0 {
			return fmt.Errorf("%w: max_num_recompressions must not be negative, got %d", errs.ErrInvalidConfig, n)
		}
		s.maxNumRecompressions = n

		return nil
	})
}

// WithPerBuyerSignalsMaxSizeBytes caps the protected app signals of one buyer. Zero disables the cap.
func WithPerBuyerSignalsMaxSizeBytes(n int) FactoryOption {
	return options.New(func(s *factorySettings) error {
		if n < 0 {
			return fmt.Errorf("%w: per_buyer_signals_max_size_bytes must not be negative, got %d", errs.ErrInvalidConfig, n)
		}
		s.perBuyerSignalsMaxSizeBytes = n

		return nil
	})
}

// WithFetchConcurrency bounds the number of buyers fetched in parallel.
func WithFetchConcurrency(n int) FactoryOption {
	return options.NoError(func(s *factorySettings) {
		s.fetchConcurrency = n
	})
}

// WithLogger sets the logger handed to the creators.
func WithLogger(logger zerolog.Logger) FactoryOption {
	return options.NoError(func(s *factorySettings) {
		s.logger = logger
	})
}

// Factory picks the creator, data fetcher and arguments preparer for a deployment.
//
// Factory is immutable and safe for concurrent use; the values it returns are per request.
type Factory struct {
	codec    compress.Compressor
	settings factorySettings
}

// NewFactory creates a factory compressing buyer inputs with codec.
//
// Returns:
//   - *Factory: Configured factory
//   - error: errs.ErrInvalidConfig for rejected option values
func NewFactory(codec compress.Compressor, opts ...FactoryOption) (*Factory, error) {
	s := &factorySettings{
		maxNumRecompressions:        DefaultMaxNumRecompressions,
		perBuyerSignalsMaxSizeBytes: DefaultPerBuyerSignalsMaxSizeBytes,
		fetchConcurrency:            DefaultFetchConcurrency,
		logger:                      zerolog.Nop(),
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return &Factory{codec: codec, settings: *s}, nil
}

// SellerConfigurationEnabled reports whether seller-driven optimization is on.
func (f *Factory) SellerConfigurationEnabled() bool {
	return f.settings.sellerConfigurationEnabled
}

// CreatorVersion returns the configured creator version.
func (f *Factory) CreatorVersion() format.CreatorVersion {
	return f.settings.creatorVersion
}

// Creator returns the creator for one request.
//
// With optimization disabled the NoOptimizations creator is returned whatever the configured
// version. Otherwise the version is looked up in the creator table.
//
// Returns *errs.UnsupportedVersionError (matches errs.ErrUnsupportedCreatorVersion) for a
// version missing from the table.
func (f *Factory) Creator(octx optimization.Context) (Creator, error) {
	if !f.settings.sellerConfigurationEnabled {
		return NewNoOptimizations(f.codec), nil
	}

	kind, ok := creatorKinds[f.settings.creatorVersion]
	if !ok {
		return nil, &errs.UnsupportedVersionError{Kind: errs.KindCreator, Version: int(f.settings.creatorVersion)}
	}

	switch kind {
	case creatorNoOptimizations:
		return NewNoOptimizations(f.codec), nil
	case creatorSellerPayloadMax:
		return NewSellerPayloadMax(f.codec, octx, f.settings.maxNumRecompressions,
			f.settings.perBuyerSignalsMaxSizeBytes, f.settings.logger), nil
	case creatorPerBuyerLimitsGreedy:
		return NewPerBuyerLimitsGreedy(f.codec, octx, f.settings.perBuyerSignalsMaxSizeBytes, f.settings.logger), nil
	}

	return nil, &errs.UnsupportedVersionError{Kind: errs.KindCreator, Version: int(f.settings.creatorVersion)}
}

// DataFetcher returns the fetcher for src: every buyer when optimization is disabled, only the
// allow-listed buyers when it is enabled.
func (f *Factory) DataFetcher(src Source) DataFetcher {
	if f.settings.sellerConfigurationEnabled {
		return NewAllowListFetcher(src, f.settings.fetchConcurrency)
	}

	return NewAllBuyersFetcher(src, f.settings.fetchConcurrency)
}

// ArgumentsPreparer returns the preparer matching the optimization switch.
func (f *Factory) ArgumentsPreparer() optimization.ArgumentsPreparer {
	return optimization.NewArgumentsPreparer(f.settings.sellerConfigurationEnabled)
}
