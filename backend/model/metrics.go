package model

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type clientMetricsProvider struct {
	logger   *slog.Logger
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

func newClientMetricsProvider(registry *prometheus.Registry, logger *slog.Logger) *clientMetricsProvider {
	provider := &clientMetricsProvider{logger: logger}
	if registry == nil {
		return provider
	}

	provider.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_requests_total",
			Help: "Total number of model requests by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	provider.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_request_duration_seconds",
			Help:    "Latency of single model request attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider", "operation"},
	)
	provider.retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_request_retries_total",
			Help: "Total number of retried model requests by provider",
		},
		[]string{"provider"},
	)

	provider.requests = registerCollector(registry, provider.requests)
	provider.duration = registerCollector(registry, provider.duration)
	provider.retries = registerCollector(registry, provider.retries)

	return provider
}

// registerCollector returns the collector already registered under the same
// name when several clients share one registry.
func registerCollector[C prometheus.Collector](registry *prometheus.Registry, collector C) C {
	if err := registry.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}

func (p *clientMetricsProvider) RecordAttempt(provider, operation string, start time.Time, err *ProviderError) {
	if p == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = string(err.Kind)
	}

	if p.requests != nil {
		p.requests.WithLabelValues(provider, operation, outcome).Inc()
	}
	if p.duration != nil {
		p.duration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	}
}

func (p *clientMetricsProvider) retryHook(provider string) *retryLogger {
	return &retryLogger{provider: provider, metrics: p}
}

// retryLogger reports retries of one provider.
type retryLogger struct {
	provider string
	metrics  *clientMetricsProvider
}

func (r *retryLogger) OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration) {
	if r.metrics == nil {
		return
	}
	if r.metrics.retries != nil {
		r.metrics.retries.WithLabelValues(r.provider).Inc()
	}
	if r.metrics.logger != nil {
		r.metrics.logger.WarnContext(ctx, "retrying model request",
			"provider", r.provider,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	}
}

func (r *retryLogger) OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration) {
	if r.metrics != nil && r.metrics.logger != nil && attempts > 1 {
		r.metrics.logger.InfoContext(ctx, "model request succeeded after retry",
			"provider", r.provider,
			"attempts", attempts,
			"duration", totalDuration,
		)
	}
}

func (r *retryLogger) OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration) {
	if r.metrics != nil && r.metrics.logger != nil {
		r.metrics.logger.ErrorContext(ctx, "model request failed",
			"provider", r.provider,
			"attempts", attempts,
			"duration", totalDuration,
			"error", err,
		)
	}
}
