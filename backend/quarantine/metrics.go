package quarantine

import "github.com/prometheus/client_golang/prometheus"

type metricsProvider struct {
	sessions    *prometheus.CounterVec
	rounds      prometheus.Histogram
	corrections *prometheus.CounterVec
}

func newMetricsProvider(registry *prometheus.Registry) *metricsProvider {
	if registry == nil {
		return nil
	}

	provider := &metricsProvider{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarantine_sessions_total",
				Help: "Total number of quarantine sessions by outcome",
			},
			[]string{"outcome"},
		),
		rounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quarantine_rounds",
				Help:    "Number of answered questions per quarantine session",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
		),
		corrections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarantine_answer_corrections_total",
				Help: "Total number of quarantined agent answers replaced by the default option",
			},
			[]string{"reason"},
		),
	}

	provider.sessions = register(registry, provider.sessions)
	provider.rounds = register(registry, provider.rounds)
	provider.corrections = register(registry, provider.corrections)

	return provider
}

func register[C prometheus.Collector](registry *prometheus.Registry, collector C) C {
	if err := registry.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}

func (p *metricsProvider) RecordSession(outcome string, rounds int) {
	if p == nil {
		return
	}
	p.sessions.WithLabelValues(outcome).Inc()
	p.rounds.Observe(float64(rounds))
}

func (p *metricsProvider) IncrementCorrection(reason string) {
	if p != nil {
		p.corrections.WithLabelValues(reason).Inc()
	}
}
