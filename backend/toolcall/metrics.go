package toolcall

import "github.com/prometheus/client_golang/prometheus"

type adapterMetricsProvider struct {
	results      *prometheus.CounterVec
	imageResults *prometheus.CounterVec
	encodedBytes *prometheus.CounterVec
}

func newAdapterMetricsProvider(registry *prometheus.Registry) *adapterMetricsProvider {
	if registry == nil {
		return nil
	}

	provider := &adapterMetricsProvider{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolcall_results_converted_total",
				Help: "Total number of tool results converted by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		imageResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolcall_image_blocks_total",
				Help: "Total number of canonical image blocks converted to provider images",
			},
			[]string{"provider"},
		),
		encodedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolcall_result_bytes_total",
				Help: "Total bytes of tool result bodies by encoding",
			},
			[]string{"provider", "encoding"},
		),
	}

	registerOrReuse(registry, &provider.results)
	registerOrReuse(registry, &provider.imageResults)
	registerOrReuse(registry, &provider.encodedBytes)

	return provider
}

// registerOrReuse lets several adapters share one registry.
func registerOrReuse(registry *prometheus.Registry, collector **prometheus.CounterVec) {
	if err := registry.Register(*collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				*collector = existing
			}
		}
	}
}

func (p *adapterMetricsProvider) IncrementResult(provider ProviderKind, outcome string) {
	if p != nil && p.results != nil {
		p.results.WithLabelValues(string(provider), outcome).Inc()
	}
}

func (p *adapterMetricsProvider) AddImages(provider ProviderKind, count int) {
	if p != nil && p.imageResults != nil && count > 0 {
		p.imageResults.WithLabelValues(string(provider)).Add(float64(count))
	}
}

func (p *adapterMetricsProvider) AddEncodedBytes(provider ProviderKind, encoding string, size int) {
	if p != nil && p.encodedBytes != nil {
		p.encodedBytes.WithLabelValues(string(provider), encoding).Add(float64(size))
	}
}

const (
	resultOutcomeError = "error"
	resultOutcomeImage = "image"
	resultOutcomeText  = "text"

	encodingJSON    = "json"
	encodingCompact = "compact"
)
