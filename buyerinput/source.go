package buyerinput

import (
	"context"
	"slices"
	"sync"
)

// Source reads stored buyer data. Implementations wrap the custom audience and encoded signals
// stores; every read may block and must honor ctx.
type Source interface {
	// Buyers lists every buyer with stored data.
	Buyers(ctx context.Context) ([]string, error)
	// CustomAudiences returns the eligible audiences of buyer, possibly none.
	CustomAudiences(ctx context.Context, buyer string) ([]CustomAudience, error)
	// EncodedSignals returns the encoded protected app signals of buyer. ok is false when the
	// buyer has none.
	EncodedSignals(ctx context.Context, buyer string) (signals EncodedSignals, ok bool, err error)
}

// MemorySource is a Source backed by maps, used by tools and tests.
//
// MemorySource is safe for concurrent use.
type MemorySource struct {
	mu        sync.RWMutex
	audiences map[string][]CustomAudience
	signals   map[string]EncodedSignals
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source holding audiences and signals.
func NewMemorySource(audiences []CustomAudience, signals []EncodedSignals) *MemorySource {
	s := &MemorySource{
		audiences: make(map[string][]CustomAudience),
		signals:   make(map[string]EncodedSignals),
	}
	for _, ca := range audiences {
		s.AddCustomAudience(ca)
	}
	for _, sig := range signals {
		s.PutEncodedSignals(sig)
	}

	return s
}

// AddCustomAudience stores ca under ca.Buyer.
func (s *MemorySource) AddCustomAudience(ca CustomAudience) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audiences[ca.Buyer] = append(s.audiences[ca.Buyer], ca)
}

// PutEncodedSignals stores sig under sig.Buyer, replacing any previous signals.
func (s *MemorySource) PutEncodedSignals(sig EncodedSignals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals[sig.Buyer] = sig
}

// Buyers returns every buyer with audiences or signals, sorted.
func (s *MemorySource) Buyers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	buyers := make([]string, 0, len(s.audiences)+len(s.signals))
	for buyer := range s.audiences {
		buyers = append(buyers, buyer)
	}
	for buyer := range s.signals {
		if _, ok := s.audiences[buyer]; !ok {
			buyers = append(buyers, buyer)
		}
	}
	slices.Sort(buyers)

	return buyers, nil
}

// CustomAudiences returns a copy of the audiences stored for buyer.
func (s *MemorySource) CustomAudiences(ctx context.Context, buyer string) ([]CustomAudience, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.audiences[buyer]), nil
}

// EncodedSignals returns the signals stored for buyer.
func (s *MemorySource) EncodedSignals(ctx context.Context, buyer string) (EncodedSignals, bool, error) {
	if err := ctx.Err(); err != nil {
		return EncodedSignals{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[buyer]

	return sig, ok, nil
}
