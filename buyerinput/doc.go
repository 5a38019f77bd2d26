// Package buyerinput builds the compressed per-buyer inputs of an auction payload.
//
// A request flows through three pieces chosen by Factory:
//
//   - optimization.ArgumentsPreparer turns the seller configuration into a budget
//   - DataFetcher reads the participating buyers from a Source
//   - Creator serializes, trims and compresses one BuyerInput per buyer
//
// # Creators
//
//	version  creator               budget
//	0        NoOptimizations       none, every buyer input is compressed as-is
//	1        SellerPayloadMax      one global budget, iterative trim-and-recompress search
//	2        PerBuyerLimitsGreedy  per-buyer targets, greedy fill with one truncation pass
//
// Optimization is a deployment switch: when it is off, NoOptimizations and the all-buyers
// fetcher are used whatever the configured creator version.
//
// # Wire Format
//
// BuyerInput and ProtectedAuctionInput are encoded in protobuf wire format so the auction service
// can decode them with its generated types.
//
// # Basic Usage
//
//	factory, err := buyerinput.NewFactory(codec,
//	    buyerinput.WithSellerConfigurationEnabled(true),
//	    buyerinput.WithCreatorVersion(format.CreatorSellerPayloadMax),
//	)
//	octx := factory.ArgumentsPreparer().Prepare(seller, currentSize)
//	data, err := factory.DataFetcher(src).Fetch(ctx, octx)
//	creator, err := factory.Creator(octx)
//	res, err := creator.Create(data)
package buyerinput
