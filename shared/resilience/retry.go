package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxAttempts        uint
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	UseProviderBackoff bool
	BackoffMultiplier  float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:        5,
		InitialDelay:       1 * time.Second,
		MaxDelay:           10 * time.Second,
		UseProviderBackoff: true,
		BackoffMultiplier:  2,
	}
}

type RetryHook interface {
	OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration)
	OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration)
	OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration)
}

// RetryDecision classifies a failed attempt.
type RetryDecision struct {
	Retry bool
	// After overrides the computed delay when positive and the config allows
	// provider supplied backoff.
	After time.Duration
}

type Classifier func(err error) RetryDecision

// Retry runs op with exponential backoff until it succeeds, the classifier
// declares the error permanent, attempts run out or ctx ends. The breaker,
// when set, is consulted before every attempt and records every outcome.
func Retry[T any](ctx context.Context, config *RetryConfig, breaker *CircuitBreaker, classify Classifier, op func(ctx context.Context) (T, error), hooks ...RetryHook) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	exponential := backoff.NewExponentialBackOff()
	if config.InitialDelay > 0 {
		exponential.InitialInterval = config.InitialDelay
	}
	if config.MaxDelay > 0 {
		exponential.MaxInterval = config.MaxDelay
	}
	if config.BackoffMultiplier > 0 {
		exponential.Multiplier = config.BackoffMultiplier
	}
	policy := &providerBackOff{delegate: exponential, honorProvider: config.UseProviderBackoff}

	start := time.Now()
	var attempts uint
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		if breaker != nil && !breaker.Allow() {
			return *new(T), backoff.Permanent(fmt.Errorf("%s: %w", breaker.Provider(), ErrCircuitOpen))
		}

		result, err := op(ctx)
		if breaker != nil {
			breaker.RecordResult(err)
		}
		if err == nil {
			return result, nil
		}

		decision := classify(err)
		if !decision.Retry {
			return result, backoff.Permanent(err)
		}
		policy.next = decision.After
		return result, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(config.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			for _, hook := range hooks {
				hook.OnRetryAttempt(ctx, attempts, err, next)
			}
		}),
	)

	elapsed := time.Since(start)
	if err != nil {
		for _, hook := range hooks {
			hook.OnRetryFailure(ctx, err, attempts, elapsed)
		}
		return result, err
	}

	for _, hook := range hooks {
		hook.OnRetrySuccess(ctx, attempts, elapsed)
	}
	return result, nil
}

// providerBackOff prefers a delay announced by the provider over the
// exponential schedule.
type providerBackOff struct {
	delegate      backoff.BackOff
	honorProvider bool
	next          time.Duration
}

func (b *providerBackOff) NextBackOff() time.Duration {
	next := b.delegate.NextBackOff()
	if b.honorProvider && b.next > 0 && next != backoff.Stop {
		next = b.next
	}
	b.next = 0
	return next
}

func (b *providerBackOff) Reset() {
	b.next = 0
	b.delegate.Reset()
}

// IsCircuitOpen reports whether err was caused by an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
