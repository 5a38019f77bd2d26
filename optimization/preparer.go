package optimization

// ArgumentsPreparer derives the optimization context for one request.
type ArgumentsPreparer interface {
	// Prepare returns the budget left for buyer inputs once framing overhead and
	// currentPayloadSizeBytes of other content are accounted for. seller may be nil.
	Prepare(seller *SellerConfiguration, currentPayloadSizeBytes int) Context
}

// NewArgumentsPreparer returns the Enabled preparer when seller configuration optimization is
// turned on for the deployment, Disabled otherwise.
func NewArgumentsPreparer(enabled bool) ArgumentsPreparer {
	if enabled {
		return Enabled{}
	}

	return Disabled{}
}

// Disabled ignores the seller configuration entirely.
type Disabled struct{}

var _ ArgumentsPreparer = Disabled{}

// Prepare always returns the zero Context.
func (Disabled) Prepare(*SellerConfiguration, int) Context {
	return Context{}
}

// Enabled honors the seller's maximum payload size.
type Enabled struct{}

var _ ArgumentsPreparer = Enabled{}

// Prepare computes
//
//	available = seller.MaximumPayloadSizeBytes - (HeaderSizeBytes + currentPayloadSizeBytes)
//
// A nil seller yields the zero Context. When available <= 0 there is no room for buyer inputs and
// the zero Context is returned as well: optimization is reported disabled and no per-buyer
// allow-list applies.
func (Enabled) Prepare(seller *SellerConfiguration, currentPayloadSizeBytes int) Context {
	if seller == nil {
		return Context{}
	}

	available := seller.MaximumPayloadSizeBytes - (HeaderSizeBytes + currentPayloadSizeBytes)
	if available <= 0 {
		return Context{}
	}

	return NewContext(true, available, seller.PerBuyerConfigurations)
}
