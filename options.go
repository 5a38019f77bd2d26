package adpayload

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arloliu/adpayload/config"
	"github.com/arloliu/adpayload/encryption"
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/internal/options"
	"github.com/arloliu/adpayload/metrics"
)

type builderSettings struct {
	cfg          config.Config
	encryptor    encryption.Encryptor
	sink         metrics.Sink
	logger       zerolog.Logger
	generationID func() string
}

func defaultBuilderSettings() *builderSettings {
	return &builderSettings{
		cfg:          config.Default(),
		sink:         metrics.NoOp{},
		logger:       zerolog.Nop(),
		generationID: func() string { return uuid.NewString() },
	}
}

// Option configures a Builder.
type Option = options.Option[*builderSettings]

// WithConfig replaces the default pipeline settings. The config is validated by New.
func WithConfig(cfg config.Config) Option {
	return options.NoError(func(s *builderSettings) {
		s.cfg = cfg
	})
}

// WithEncryptor seals every built frame. Without it Result.Message stays nil.
func WithEncryptor(enc encryption.Encryptor) Option {
	return options.NoError(func(s *builderSettings) {
		s.encryptor = enc
	})
}

// WithMetrics sets the sink receiving per-request observations.
func WithMetrics(sink metrics.Sink) Option {
	return options.New(func(s *builderSettings) error {
		if sink == nil {
			return fmt.Errorf("%w: nil metrics sink", errs.ErrInvalidConfig)
		}
		s.sink = sink

		return nil
	})
}

// WithLogger sets the logger passed down to the creators.
func WithLogger(logger zerolog.Logger) Option {
	return options.NoError(func(s *builderSettings) {
		s.logger = logger
	})
}

// WithGenerationIDFunc replaces the random UUID generator for generation ids.
func WithGenerationIDFunc(fn func() string) Option {
	return options.New(func(s *builderSettings) error {
		if fn == nil {
			return fmt.Errorf("%w: nil generation id func", errs.ErrInvalidConfig)
		}
		s.generationID = fn

		return nil
	})
}
