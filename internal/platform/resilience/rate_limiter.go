package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when the rate limit is exceeded
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter is a token bucket limiter for outbound RPC traffic
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      int
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per second with
// the given burst size
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = int(rate)
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Allow reports whether one request may proceed now
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n requests may proceed now
func (rl *RateLimiter) AllowN(n int) bool {
	if n <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}

		select {
		case <-time.After(rl.nextTokenDelay()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refill adds tokens for the elapsed time (caller must hold lock)
func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.lastUpdate).Seconds() * rl.rate
	if rl.tokens > float64(rl.burst) {
		rl.tokens = float64(rl.burst)
	}
	rl.lastUpdate = now
}

// nextTokenDelay estimates the wait until one token is available, with a
// floor to avoid busy-waiting
func (rl *RateLimiter) nextTokenDelay() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	needed := 1.0 - rl.tokens
	if needed < 0 {
		needed = 0
	}

	delay := time.Duration(needed / rl.rate * float64(time.Second))
	if delay < 10*time.Millisecond {
		delay = 10 * time.Millisecond
	}
	return delay
}

// Stats returns the configured rate, burst, and currently available tokens
func (rl *RateLimiter) Stats() (rate float64, burst int, availableTokens float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.rate, rl.burst, rl.tokens
}

// Reset refills the bucket to capacity
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = float64(rl.burst)
	rl.lastUpdate = time.Now()
}
