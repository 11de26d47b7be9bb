package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/furisto/toolgate/shared/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

type ProviderOptions struct {
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Metrics        *prometheus.Registry
	Logger         *slog.Logger
}

type ProviderOption func(*ProviderOptions)

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(options *ProviderOptions) {
		options.RetryConfig = retryConfig
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(options *ProviderOptions) {
		options.CircuitBreaker = circuitBreaker
	}
}

func WithMetrics(metrics *prometheus.Registry) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) ProviderOption {
	return func(o *ProviderOptions) {
		o.Logger = logger
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		RetryConfig:    resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
		Logger:         slog.Default(),
	}
}

func newProviderOptions(name string, opts []ProviderOption) *ProviderOptions {
	options := DefaultProviderOptions(name)
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return options
}

// invoker runs provider calls through the retry policy, the circuit breaker
// and the metrics shared by every client.
type invoker struct {
	provider string
	options  *ProviderOptions
	metrics  *clientMetricsProvider
	classify func(err error) *ProviderError
}

func newInvoker(provider string, options *ProviderOptions, classify func(err error) *ProviderError) *invoker {
	return &invoker{
		provider: provider,
		options:  options,
		metrics:  newClientMetricsProvider(options.Metrics, options.Logger),
		classify: classify,
	}
}

func invoke[T any](ctx context.Context, inv *invoker, operation string, call func(ctx context.Context) (T, error)) (T, error) {
	classifier := func(err error) resilience.RetryDecision {
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			return resilience.RetryDecision{}
		}
		retry, after := providerErr.Retryable()
		return resilience.RetryDecision{Retry: retry, After: after}
	}

	return resilience.Retry(ctx, inv.options.RetryConfig, inv.options.CircuitBreaker, classifier, func(ctx context.Context) (T, error) {
		start := time.Now()
		result, err := call(ctx)
		if err != nil {
			providerErr := inv.classify(err)
			inv.metrics.RecordAttempt(inv.provider, operation, start, providerErr)
			return result, providerErr
		}
		inv.metrics.RecordAttempt(inv.provider, operation, start, nil)
		return result, nil
	}, inv.metrics.retryHook(inv.provider))
}

type ProviderError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
	Kind       ProviderErrorKind
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

func (pe *ProviderError) Message() string {
	switch pe.Kind {
	case ProviderErrorKindInvalidRequest:
		return "Invalid request format or content"
	case ProviderErrorKindAuthentication:
		return "Authentication failed"
	case ProviderErrorKindRateLimitExceeded:
		if pe.RetryAfter > 0 {
			return fmt.Sprintf("Rate limit exceeded, retry after %s", pe.RetryAfter)
		}
		return "Rate limit exceeded"
	case ProviderErrorKindOverloaded:
		return "API temporarily overloaded"
	case ProviderErrorKindInternal:
		return "Internal server error"
	case ProviderErrorKindTimeout:
		return "Request timeout"
	case ProviderErrorKindCanceled:
		return "Request canceled"
	case ProviderErrorKindInvalidResponse:
		return "Invalid response"
	default:
		return "Unknown error"
	}
}

// Retryable reports whether the call may be repeated and the delay the
// provider asked for, if any.
func (pe *ProviderError) Retryable() (bool, time.Duration) {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded:
		return true, pe.RetryAfter
	case ProviderErrorKindOverloaded,
		ProviderErrorKindInternal,
		ProviderErrorKindTimeout:
		return true, 0
	default:
		return false, 0
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindAuthentication    ProviderErrorKind = "authentication"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindInvalidResponse   ProviderErrorKind = "invalid_response"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)

// classifyStatus maps an HTTP status and the Retry-After header onto the
// error taxonomy. Context errors take precedence.
func classifyStatus(provider string, err error, status int, header http.Header) *ProviderError {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewProviderError(provider, ProviderErrorKindCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, ProviderErrorKindTimeout, err)
	}

	kind := ProviderErrorKindUnknown
	switch {
	case status == http.StatusBadRequest, status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		kind = ProviderErrorKindInvalidRequest
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = ProviderErrorKindAuthentication
	case status == http.StatusTooManyRequests:
		kind = ProviderErrorKindRateLimitExceeded
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = ProviderErrorKindTimeout
	case status == 529, status == http.StatusServiceUnavailable:
		kind = ProviderErrorKindOverloaded
	case status >= 500:
		kind = ProviderErrorKindInternal
	}

	providerErr = NewProviderError(provider, kind, err)
	if header != nil {
		providerErr.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	return providerErr
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil && seconds > 0 {
		return seconds
	}
	if at, err := http.ParseTime(value); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}
