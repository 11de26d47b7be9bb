package event

import "github.com/prometheus/client_golang/prometheus"

type routerMetricsProvider struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func newRouterMetricsProvider(registry *prometheus.Registry) *routerMetricsProvider {
	if registry == nil {
		return nil
	}

	provider := &routerMetricsProvider{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_router_events_published_total",
				Help: "Total number of events published by event type",
			},
			[]string{"event_type"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_router_events_delivered_total",
				Help: "Total number of events delivered to subscribers by event type",
			},
			[]string{"event_type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_router_events_dropped_total",
				Help: "Total number of events dropped due to full channel buffers",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		provider.published,
		provider.delivered,
		provider.dropped,
	)

	return provider
}

func (p *routerMetricsProvider) IncrementPublished(eventType string) {
	if p != nil && p.published != nil {
		p.published.WithLabelValues(eventType).Inc()
	}
}

func (p *routerMetricsProvider) IncrementDelivered(eventType string) {
	if p != nil && p.delivered != nil {
		p.delivered.WithLabelValues(eventType).Inc()
	}
}

func (p *routerMetricsProvider) IncrementDropped(eventType string) {
	if p != nil && p.dropped != nil {
		p.dropped.WithLabelValues(eventType).Inc()
	}
}
