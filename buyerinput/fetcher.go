package buyerinput

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/adpayload/optimization"
)

// DefaultFetchConcurrency bounds the number of buyers read from a Source at once.
const DefaultFetchConcurrency = 8

// DataFetcher decides which buyers participate in a request and reads their data.
type DataFetcher interface {
	Fetch(ctx context.Context, octx optimization.Context) (Data, error)
}

// AllBuyersFetcher reads every buyer the source knows about.
type AllBuyersFetcher struct {
	src         Source
	concurrency int
}

var _ DataFetcher = (*AllBuyersFetcher)(nil)

// NewAllBuyersFetcher creates a fetcher reading up to concurrency buyers in parallel.
// A non-positive concurrency uses DefaultFetchConcurrency.
func NewAllBuyersFetcher(src Source, concurrency int) *AllBuyersFetcher {
	return &AllBuyersFetcher{src: src, concurrency: fetchConcurrency(concurrency)}
}

// Fetch ignores octx and reads every buyer.
func (f *AllBuyersFetcher) Fetch(ctx context.Context, _ optimization.Context) (Data, error) {
	buyers, err := f.src.Buyers(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list buyers: %w", err)
	}

	return fetchBuyers(ctx, f.src, buyers, f.concurrency)
}

// AllowListFetcher reads only the buyers named in the per-buyer configurations.
type AllowListFetcher struct {
	src         Source
	concurrency int
}

var _ DataFetcher = (*AllowListFetcher)(nil)

// NewAllowListFetcher creates a fetcher reading up to concurrency buyers in parallel.
// A non-positive concurrency uses DefaultFetchConcurrency.
func NewAllowListFetcher(src Source, concurrency int) *AllowListFetcher {
	return &AllowListFetcher{src: src, concurrency: fetchConcurrency(concurrency)}
}

// Fetch reads the buyers that both the source and octx know about. An empty allow-list yields
// empty Data.
func (f *AllowListFetcher) Fetch(ctx context.Context, octx optimization.Context) (Data, error) {
	allowed := octx.Buyers()
	if len(allowed) == 0 {
		return NewData(nil, nil), nil
	}

	known, err := f.src.Buyers(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("list buyers: %w", err)
	}

	buyers := make([]string, 0, len(allowed))
	for _, buyer := range known {
		if octx.HasBuyer(buyer) {
			buyers = append(buyers, buyer)
		}
	}

	return fetchBuyers(ctx, f.src, buyers, f.concurrency)
}

type buyerData struct {
	audiences []CustomAudience
	signals   EncodedSignals
	hasSignal bool
}

func fetchBuyers(ctx context.Context, src Source, buyers []string, concurrency int) (Data, error) {
	buyers = slices.Compact(slices.Sorted(slices.Values(buyers)))
	results := make([]buyerData, len(buyers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, buyer := range buyers {
		g.Go(func() error {
			cas, err := src.CustomAudiences(gctx, buyer)
			if err != nil {
				return fmt.Errorf("read custom audiences of %s: %w", buyer, err)
			}
			sig, ok, err := src.EncodedSignals(gctx, buyer)
			if err != nil {
				return fmt.Errorf("read encoded signals of %s: %w", buyer, err)
			}

			for j := range cas {
				cas[j].Buyer = buyer
			}
			sig.Buyer = buyer
			results[i] = buyerData{audiences: cas, signals: sig, hasSignal: ok}

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Data{}, err
	}

	var (
		audiences []CustomAudience
		signals   []EncodedSignals
	)
	for _, r := range results {
		audiences = append(audiences, r.audiences...)
		if r.hasSignal {
			signals = append(signals, r.signals)
		}
	}

	return NewData(audiences, signals), nil
}

func fetchConcurrency(n int) int {
	if n <= 0 {
		return DefaultFetchConcurrency
	}

	return n
}
