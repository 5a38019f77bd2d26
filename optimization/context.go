// Package optimization derives the per-request buyer input budget from a seller's declared
// payload size constraints.
package optimization

import (
	"maps"
	"slices"
)

// HeaderSizeBytes is the framing overhead subtracted from the seller's maximum: one meta byte
// plus the four byte length prefix.
const HeaderSizeBytes = 1 + 4

// PerBuyerConfiguration is a seller-declared size target for one buyer.
type PerBuyerConfiguration struct {
	Buyer                string `toml:"buyer"`
	TargetInputSizeBytes int    `toml:"target_input_size_bytes"`
}

// SellerConfiguration is the size constraint a seller attaches to a request.
type SellerConfiguration struct {
	MaximumPayloadSizeBytes int                     `toml:"maximum_payload_size_bytes"`
	PerBuyerConfigurations  []PerBuyerConfiguration `toml:"per_buyer_configurations"`
}

// Context is the immutable budget handed to one buyer input creator.
//
// The zero value means no optimization: no budget and no per-buyer allow-list.
type Context struct {
	optimizationsEnabled   bool
	maxBuyerInputSizeBytes int
	perBuyer               map[string]int
}

// NewContext creates a context from its parts. Per-buyer entries are copied; when the same buyer
// appears twice the last entry wins.
func NewContext(enabled bool, maxBuyerInputSizeBytes int, perBuyer []PerBuyerConfiguration) Context {
	c := Context{
		optimizationsEnabled:   enabled,
		maxBuyerInputSizeBytes: max(maxBuyerInputSizeBytes, 0),
	}
	if len(perBuyer) > 0 {
		c.perBuyer = make(map[string]int, len(perBuyer))
		for _, cfg := range perBuyer {
			c.perBuyer[cfg.Buyer] = cfg.TargetInputSizeBytes
		}
	}

	return c
}

// OptimizationsEnabled reports whether seller-driven size optimization applies to this request.
func (c Context) OptimizationsEnabled() bool {
	return c.optimizationsEnabled
}

// MaxBuyerInputSizeBytes returns the bytes available for all compressed buyer inputs together.
func (c Context) MaxBuyerInputSizeBytes() int {
	return c.maxBuyerInputSizeBytes
}

// PerBuyerConfigurations returns the per-buyer targets sorted by buyer.
func (c Context) PerBuyerConfigurations() []PerBuyerConfiguration {
	out := make([]PerBuyerConfiguration, 0, len(c.perBuyer))
	for _, buyer := range c.Buyers() {
		out = append(out, PerBuyerConfiguration{Buyer: buyer, TargetInputSizeBytes: c.perBuyer[buyer]})
	}

	return out
}

// Buyers returns the buyers named in the per-buyer configurations, sorted.
func (c Context) Buyers() []string {
	return slices.Sorted(maps.Keys(c.perBuyer))
}

// TargetFor returns the seller's target size for buyer.
func (c Context) TargetFor(buyer string) (int, bool) {
	size, ok := c.perBuyer[buyer]

	return size, ok
}

// HasBuyer reports whether buyer is named in the per-buyer configurations.
func (c Context) HasBuyer(buyer string) bool {
	_, ok := c.perBuyer[buyer]

	return ok
}
