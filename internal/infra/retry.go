package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it. Callers should back off rather than hammer retries.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig tunes the retry executor.
type RetryConfig struct {
	Attempts          int           // total attempts per Execute
	BaseDelay         time.Duration // first backoff sleep
	MaxDelay          time.Duration // backoff cap
	BackoffMultiplier int
	Timeout           time.Duration // per-attempt deadline; also breaker cooldown
	BreakerThreshold  int           // consecutive failures before opening
}

// DefaultRetryConfig returns the observed defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:          3,
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		Timeout:           30 * time.Second,
		BreakerThreshold:  5,
	}
}

// RetryConfigFrom builds a RetryConfig from the application config.
func RetryConfigFrom(cfg *Config) RetryConfig {
	return RetryConfig{
		Attempts:          cfg.Retry.Attempts,
		BaseDelay:         cfg.Retry.BaseDelay.Std(),
		MaxDelay:          cfg.Retry.MaxDelay.Std(),
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Timeout:           cfg.Retry.Timeout.Std(),
		BreakerThreshold:  cfg.Retry.BreakerThreshold,
	}
}

// RetryExecutor wraps fallible remote calls with retry, exponential
// backoff, per-attempt timeouts, and a circuit breaker. All broker-facing
// I/O must pass through one of these; nothing bypasses it.
type RetryExecutor struct {
	Config  RetryConfig
	breaker *CircuitBreaker
}

// NewRetryExecutor creates an executor with its own breaker.
func NewRetryExecutor(name string, cfg RetryConfig) *RetryExecutor {
	return &RetryExecutor{
		Config: cfg,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			Name:             name,
			FailureThreshold: cfg.BreakerThreshold,
			Cooldown:         cfg.Timeout,
		}),
	}
}

// Breaker exposes the underlying breaker for monitoring.
func (r *RetryExecutor) Breaker() *CircuitBreaker {
	return r.breaker
}

// Execute runs op with the retry policy. Each attempt races the operation
// against the per-attempt timeout; failures sleep an exponentially growing
// delay before the next attempt. Exhausting all attempts returns an error
// naming the last underlying failure. A breaker rejection fails fast with
// ErrCircuitOpen.
func (r *RetryExecutor) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.Config.Attempts; attempt++ {
		if !r.breaker.Allow() {
			return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
		}

		err := r.runAttempt(ctx, op)
		if err == nil {
			r.breaker.RecordSuccess()
			return nil
		}

		r.breaker.RecordFailure()
		lastErr = err
		slog.Warn("Operation attempt failed",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Any("err", err))

		if attempt == r.Config.Attempts {
			break
		}

		delay := RetryDelay(attempt, r.Config.BaseDelay, r.Config.MaxDelay, r.Config.BackoffMultiplier)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", name, r.Config.Attempts, lastErr)
}

// runAttempt executes op under the per-attempt deadline. A hung operation
// is abandoned when the deadline fires; its goroutine drains into the
// buffered channel.
func (r *RetryExecutor) runAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, r.Config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return attemptCtx.Err()
	}
}
