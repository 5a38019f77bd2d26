package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/adpayload/buyerinput"
	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/optimization"
)

// fixture is the TOML layout read by pack.
type fixture struct {
	PublisherName        string                            `toml:"publisher_name"`
	EnableDebugReporting bool                              `toml:"enable_debug_reporting"`
	Seller               *optimization.SellerConfiguration `toml:"seller"`
	CustomAudiences      []buyerinput.CustomAudience       `toml:"custom_audiences"`
	EncodedSignals       []fixtureSignals                  `toml:"encoded_signals"`
}

type fixtureSignals struct {
	Buyer      string `toml:"buyer"`
	Version    int    `toml:"version"`
	PayloadHex string `toml:"payload_hex"`
}

func loadFixture(path string) (*fixture, error) {
	var fx fixture
	meta, err := toml.DecodeFile(path, &fx)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("%w: unknown fixture keys %s", errs.ErrInvalidConfig, strings.Join(keys, ", "))
	}

	return &fx, nil
}

func (fx *fixture) source() (*buyerinput.MemorySource, error) {
	signals := make([]buyerinput.EncodedSignals, 0, len(fx.EncodedSignals))
	for _, s := range fx.EncodedSignals {
		payload, err := hex.DecodeString(s.PayloadHex)
		if err != nil {
			return nil, fmt.Errorf("%w: signals of %s: %w", errs.ErrInvalidConfig, s.Buyer, err)
		}
		signals = append(signals, buyerinput.EncodedSignals{Buyer: s.Buyer, Version: s.Version, Payload: payload})
	}

	return buyerinput.NewMemorySource(fx.CustomAudiences, signals), nil
}
