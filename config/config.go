// Package config loads the adpayload pipeline settings from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/adpayload/buyerinput"
	"github.com/arloliu/adpayload/compress"
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
	"github.com/arloliu/adpayload/frame"
	"github.com/arloliu/adpayload/optimization"
)

// Config holds the deployment-level settings of the payload pipeline.
type Config struct {
	CompressorVersion           format.CompressorVersion
	FormatterVersion            format.FormatterVersion
	BucketSizes                 []int
	SellerConfigurationEnabled  bool
	CreatorVersion              format.CreatorVersion
	MaxNumRecompressions        int
	PerBuyerSignalsMaxSizeBytes int
	FetchConcurrency            int
	// OverallTimeout bounds one Build call. Zero means no deadline.
	OverallTimeout time.Duration
}

// Default returns the settings used when a key is absent from the file.
func Default() Config {
	return Config{
		CompressorVersion:           format.CompressorGzip,
		FormatterVersion:            format.FormatterV0,
		BucketSizes:                 append([]int(nil), frame.DefaultBucketSizes...),
		CreatorVersion:              format.CreatorNoOptimizations,
		MaxNumRecompressions:        buyerinput.DefaultMaxNumRecompressions,
		PerBuyerSignalsMaxSizeBytes: buyerinput.DefaultPerBuyerSignalsMaxSizeBytes,
		FetchConcurrency:            buyerinput.DefaultFetchConcurrency,
		OverallTimeout:              2 * time.Second,
	}
}

// fileConfig maps config.toml keys.
type fileConfig struct {
	CompressorVersion           int    `toml:"compressor_version"`
	FormatterVersion            int    `toml:"formatter_version"`
	BucketSizes                 []int  `toml:"bucket_sizes"`
	SellerConfigurationEnabled  bool   `toml:"seller_configuration_enabled"`
	CreatorVersion              int    `toml:"creator_version"`
	MaxNumRecompressions        int    `toml:"max_num_recompressions"`
	PerBuyerSignalsMaxSizeBytes int    `toml:"per_buyer_signals_max_size_bytes"`
	FetchConcurrency            int    `toml:"fetch_concurrency"`
	OverallTimeout              string `toml:"overall_timeout"`
}

// Load reads path and overlays the keys it defines on Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return fromFile(raw, meta)
}

// Parse decodes TOML text and overlays the keys it defines on Default.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return fromFile(raw, meta)
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return Config{}, fmt.Errorf("%w: unknown keys %s", errs.ErrInvalidConfig, strings.Join(keys, ", "))
	}

	cfg := Default()
	if meta.IsDefined("compressor_version") {
		if raw.CompressorVersion < 0 || raw.CompressorVersion > format.MaxCompressorVersion {
			return Config{}, fmt.Errorf("%w: compressor_version %d out of range", errs.ErrInvalidConfig, raw.CompressorVersion)
		}
		cfg.CompressorVersion = format.CompressorVersion(raw.CompressorVersion)
	}
	if meta.IsDefined("formatter_version") {
		if raw.FormatterVersion < 0 || raw.FormatterVersion > format.MaxFormatterVersion {
			return Config{}, fmt.Errorf("%w: formatter_version %d out of range", errs.ErrInvalidConfig, raw.FormatterVersion)
		}
		cfg.FormatterVersion = format.FormatterVersion(raw.FormatterVersion)
	}
	if meta.IsDefined("bucket_sizes") {
		cfg.BucketSizes = raw.BucketSizes
	}
	if meta.IsDefined("seller_configuration_enabled") {
		cfg.SellerConfigurationEnabled = raw.SellerConfigurationEnabled
	}
	if meta.IsDefined("creator_version") {
		if raw.CreatorVersion < 0 || raw.CreatorVersion > 255 {
			return Config{}, fmt.Errorf("%w: creator_version %d out of range", errs.ErrInvalidConfig, raw.CreatorVersion)
		}
		cfg.CreatorVersion = format.CreatorVersion(raw.CreatorVersion)
	}
	if meta.IsDefined("max_num_recompressions") {
		cfg.MaxNumRecompressions = raw.MaxNumRecompressions
	}
	if meta.IsDefined("per_buyer_signals_max_size_bytes") {
		cfg.PerBuyerSignalsMaxSizeBytes = raw.PerBuyerSignalsMaxSizeBytes
	}
	if meta.IsDefined("fetch_concurrency") {
		cfg.FetchConcurrency = raw.FetchConcurrency
	}
	if meta.IsDefined("overall_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.OverallTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: overall_timeout: %w", errs.ErrInvalidConfig, err)
		}
		cfg.OverallTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every version against the implementation tables and the numeric settings
// against their ranges. All problems are reported together.
func (c Config) Validate() error {
	var problems []error

	if _, err := compress.GetCompressor(c.CompressorVersion); err != nil {
		problems = append(problems, err)
	}
	if _, err := frame.NewFormatter(c.FormatterVersion, frame.WithBucketSizes(c.BucketSizes...)); err != nil {
		problems = append(problems, err)
	}
	if c.SellerConfigurationEnabled {
		f, err := buyerinput.NewFactory(nil,
			buyerinput.WithSellerConfigurationEnabled(true),
			buyerinput.WithCreatorVersion(c.CreatorVersion),
		)
		if err == nil {
			_, err = f.Creator(optimization.Context{})
		}
		if err != nil {
			problems = append(problems, err)
		}
	}
	if c.MaxNumRecompressions < 0 {
		problems = append(problems, fmt.Errorf("%w: max_num_recompressions must not be negative", errs.ErrInvalidConfig))
	}
	if c.PerBuyerSignalsMaxSizeBytes < 0 {
		problems = append(problems, fmt.Errorf("%w: per_buyer_signals_max_size_bytes must not be negative", errs.ErrInvalidConfig))
	}
	if c.OverallTimeout < 0 {
		problems = append(problems, fmt.Errorf("%w: overall_timeout must not be negative", errs.ErrInvalidConfig))
	}

	return errors.Join(problems...)
}
