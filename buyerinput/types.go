package buyerinput

import (
	"cmp"
	"slices"
)

// CustomAudience is one named group of bidding signals owned by a buyer.
//
// Buyer and Priority drive selection and are not part of the wire encoding: the buyer is the key
// of the surrounding map and priority only orders candidates on the device.
type CustomAudience struct {
	Buyer              string   `toml:"buyer"`
	Owner              string   `toml:"owner"`
	Name               string   `toml:"name"`
	Priority           float64  `toml:"priority"`
	UserBiddingSignals string   `toml:"user_bidding_signals"`
	BiddingSignalsKeys []string `toml:"bidding_signals_keys"`
	AdRenderIDs        []string `toml:"ad_render_ids"`
}

// EncodedSignals is a buyer's protected app signals blob as produced by its encoding script.
type EncodedSignals struct {
	Buyer   string `toml:"buyer"`
	Version int    `toml:"version"`
	Payload []byte `toml:"payload"`
}

// BuyerInput is the uncompressed per-buyer message sent to the auction service.
type BuyerInput struct {
	CustomAudiences     []CustomAudience
	ProtectedAppSignals *EncodedSignals
}

// Empty reports whether the input carries neither audiences nor signals.
func (b *BuyerInput) Empty() bool {
	return len(b.CustomAudiences) == 0 && b.ProtectedAppSignals == nil
}

// Data is everything fetched for one request, keyed by buyer.
type Data struct {
	// Buyers lists the participating buyers in ascending order.
	Buyers          []string
	CustomAudiences map[string][]CustomAudience
	Signals         map[string]EncodedSignals
}

// NewData groups audiences and signals by buyer. Buyers with neither are left out.
func NewData(audiences []CustomAudience, signals []EncodedSignals) Data {
	d := Data{
		CustomAudiences: make(map[string][]CustomAudience),
		Signals:         make(map[string]EncodedSignals),
	}
	for _, ca := range audiences {
		d.CustomAudiences[ca.Buyer] = append(d.CustomAudiences[ca.Buyer], ca)
	}
	for _, s := range signals {
		d.Signals[s.Buyer] = s
	}

	seen := make(map[string]struct{})
	for buyer := range d.CustomAudiences {
		seen[buyer] = struct{}{}
	}
	for buyer := range d.Signals {
		seen[buyer] = struct{}{}
	}
	for buyer := range seen {
		d.Buyers = append(d.Buyers, buyer)
	}
	slices.Sort(d.Buyers)

	return d
}

// Full returns the complete, untrimmed input for buyer.
func (d Data) Full(buyer string) BuyerInput {
	in := BuyerInput{CustomAudiences: d.CustomAudiences[buyer]}
	if s, ok := d.Signals[buyer]; ok {
		in.ProtectedAppSignals = &s
	}

	return in
}

// CustomAudienceCount returns the number of audiences across all buyers.
func (d Data) CustomAudienceCount() int {
	n := 0
	for _, cas := range d.CustomAudiences {
		n += len(cas)
	}

	return n
}

// byPriority orders audiences by descending priority, then buyer and name for a stable result.
func byPriority(a, b CustomAudience) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Buyer, b.Buyer); c != 0 {
		return c
	}

	return cmp.Compare(a.Name, b.Name)
}
