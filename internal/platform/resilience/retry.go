// Package resilience guards the RPC transport: retries with backoff, a
// circuit breaker per endpoint, and a token-bucket rate limiter. Conversion
// requests themselves are never retried; only the underlying transport is.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.1,
	}
}

// RetryWithResult runs fn with exponential backoff until it succeeds, the
// error is non-retryable, the attempts are exhausted, or ctx is done.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, fmt.Errorf("non-retryable error: %w", err)
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(backoffDelay(attempt, cfg)):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("max retry attempts reached: %w", lastErr)
}

// Retry runs fn with exponential backoff.
func Retry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func(context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, isRetryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// backoffDelay is baseDelay*2^attempt capped at MaxDelay, with +/- Jitter.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		spread := delay * cfg.Jitter
		delay = delay - spread + rand.Float64()*spread*2
	}
	return time.Duration(delay)
}

// IsRetryable reports whether an RPC error is worth retrying. Contract
// reverts and argument errors are deterministic and never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert") {
		return false
	}
	if strings.Contains(msg, "invalid argument") {
		return false
	}
	if strings.Contains(msg, "status code 4") && !strings.Contains(msg, "status code 429") {
		return false
	}

	return true
}
