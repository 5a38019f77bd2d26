// Package metrics records payload pipeline statistics.
//
// The pipeline reports through the Sink interface. NoOp discards everything and is the default;
// Prometheus exports the observations through client_golang collectors registered on a
// caller-supplied registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// BuyerInputs describes the compressed buyer inputs produced for one request.
type BuyerInputs struct {
	Creator           string
	Buyers            int
	CustomAudiences   int
	UncompressedBytes int
	CompressedBytes   int
}

// Optimization describes how a creator fitted the inputs under the seller budget.
type Optimization struct {
	Creator        string
	Outcome        string
	Recompressions int
}

// Frame describes one formatted request frame.
type Frame struct {
	Formatter string
	SizeBytes int
	// Failed is set when the formatter rejected the payload.
	Failed bool
}

// Sink receives pipeline observations. Implementations must be safe for concurrent use.
type Sink interface {
	ObserveBuyerInputs(BuyerInputs)
	ObserveOptimization(Optimization)
	ObserveFrame(Frame)
}

// NoOp discards every observation.
type NoOp struct{}

var _ Sink = NoOp{}

func (NoOp) ObserveBuyerInputs(BuyerInputs)   {}
func (NoOp) ObserveOptimization(Optimization) {}
func (NoOp) ObserveFrame(Frame)               {}

const namespace = "adpayload"

var sizeBuckets = prometheus.ExponentialBuckets(256, 2, 10)

// Prometheus exports observations as client_golang metrics.
type Prometheus struct {
	buyers          *prometheus.HistogramVec
	audiences       *prometheus.HistogramVec
	uncompressed    *prometheus.HistogramVec
	compressed      *prometheus.HistogramVec
	outcomes        *prometheus.CounterVec
	recompressions  *prometheus.HistogramVec
	frameSize       *prometheus.HistogramVec
	formatterErrors *prometheus.CounterVec
}

var _ Sink = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them on reg.
//
// Returns an error when any collector is already registered on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		buyers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buyer_input",
			Name:      "buyers",
			Help:      "Buyers with a non-empty input per request.",
			Buckets:   prometheus.LinearBuckets(0, 4, 10),
		}, []string{"creator"}),
		audiences: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buyer_input",
			Name:      "custom_audiences",
			Help:      "Custom audiences included per request.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"creator"}),
		uncompressed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buyer_input",
			Name:      "uncompressed_bytes",
			Help:      "Encoded buyer input bytes before compression.",
			Buckets:   sizeBuckets,
		}, []string{"creator"}),
		compressed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "buyer_input",
			Name:      "compressed_bytes",
			Help:      "Compressed buyer input bytes per request.",
			Buckets:   sizeBuckets,
		}, []string{"creator"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "outcomes_total",
			Help:      "Payload optimization outcomes.",
		}, []string{"creator", "outcome"}),
		recompressions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "recompressions",
			Help:      "Recompression passes per request.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}, []string{"creator"}),
		frameSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "size_bytes",
			Help:      "Padded request frame size.",
			Buckets:   sizeBuckets,
		}, []string{"formatter"}),
		formatterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "errors_total",
			Help:      "Payloads the formatter rejected.",
		}, []string{"formatter"}),
	}

	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.buyers, p.audiences, p.uncompressed, p.compressed,
		p.outcomes, p.recompressions, p.frameSize, p.formatterErrors,
	}
}

func (p *Prometheus) ObserveBuyerInputs(o BuyerInputs) {
	p.buyers.WithLabelValues(o.Creator).Observe(float64(o.Buyers))
	p.audiences.WithLabelValues(o.Creator).Observe(float64(o.CustomAudiences))
	p.uncompressed.WithLabelValues(o.Creator).Observe(float64(o.UncompressedBytes))
	p.compressed.WithLabelValues(o.Creator).Observe(float64(o.CompressedBytes))
}

func (p *Prometheus) ObserveOptimization(o Optimization) {
	p.outcomes.WithLabelValues(o.Creator, o.Outcome).Inc()
	p.recompressions.WithLabelValues(o.Creator).Observe(float64(o.Recompressions))
}

func (p *Prometheus) ObserveFrame(o Frame) {
	if o.Failed {
		p.formatterErrors.WithLabelValues(o.Formatter).Inc()
		return
	}
	p.frameSize.WithLabelValues(o.Formatter).Observe(float64(o.SizeBytes))
}

