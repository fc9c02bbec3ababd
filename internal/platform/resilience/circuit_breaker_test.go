package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransport = errors.New("connection refused")

func failN(n int) func(context.Context) error {
	count := 0
	return func(context.Context) error {
		count++
		if count <= n {
			return errTransport
		}
		return nil
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
	})
	ctx := context.Background()
	fail := func(context.Context) error { return errTransport }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errTransport) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state %v, want open", got)
	}

	if err := cb.Execute(ctx, fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})
	ctx := context.Background()

	cb.Execute(ctx, func(context.Context) error { return errTransport })
	cb.Execute(ctx, func(context.Context) error { return errTransport })
	cb.Execute(ctx, func(context.Context) error { return nil })
	cb.Execute(ctx, func(context.Context) error { return errTransport })
	cb.Execute(ctx, func(context.Context) error { return errTransport })

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})
	ctx := context.Background()

	cb.Execute(ctx, func(context.Context) error { return errTransport })
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)

	ok := func(context.Context) error { return nil }
	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("probe request: %v", err)
	}
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state %v, want half-open", got)
	}

	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})
	ctx := context.Background()

	cb.Execute(ctx, func(context.Context) error { return errTransport })
	time.Sleep(20 * time.Millisecond)

	cb.Execute(ctx, func(context.Context) error { return errTransport })
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state %v, want open", got)
	}
}

func TestCircuitBreaker_ContextErrorsIgnored(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	ctx := context.Background()

	cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	cb.Execute(ctx, func(context.Context) error { return context.DeadlineExceeded })

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state %v, want closed", got)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Execute(context.Background(), func(context.Context) error { return errTransport })

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("transitions %v", transitions)
	}
}

func TestCircuitBreaker_ResetAndForceOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	cb.ForceOpen()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state %v, want open", got)
	}

	cb.Reset()
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state %v, want closed", got)
	}
	state, failures, successes := cb.Stats()
	if state != StateClosed || failures != 0 || successes != 0 {
		t.Fatalf("stats %v/%d/%d after reset", state, failures, successes)
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	ctx := context.Background()

	got, err := ExecuteWithResult(cb, ctx, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}

	_, err = ExecuteWithResult(cb, ctx, func(context.Context) (int, error) { return 0, errTransport })
	if !errors.Is(err, errTransport) {
		t.Fatalf("got %v", err)
	}
	if _, err = ExecuteWithResult(cb, ctx, func(context.Context) (int, error) { return 1, nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker: got %v, want ErrCircuitOpen", err)
	}
}

func TestRetryWithResult_SucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	got, err := RetryWithResult(context.Background(), cfg, IsRetryable, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTransport
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	err := Retry(context.Background(), cfg, IsRetryable, func(context.Context) error {
		attempts++
		return errors.New("execution reverted: not a vault")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	err := Retry(context.Background(), cfg, IsRetryable, func(context.Context) error {
		attempts++
		return errTransport
	})
	if !errors.Is(err, errTransport) {
		t.Fatalf("got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", errTransport, true},
		{"revert", errors.New("execution reverted"), false},
		{"invalid argument", errors.New("invalid argument 0"), false},
		{"circuit open", ErrCircuitOpen, false},
		{"cancelled", context.Canceled, false},
		{"http 400", errors.New("status code 400"), false},
		{"http 429", errors.New("status code 429"), true},
		{"http 503", errors.New("status code 503"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d within burst denied", i)
		}
	}
	if rl.Allow() {
		t.Fatal("request beyond burst allowed")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(100, 1)

	if !rl.Allow() {
		t.Fatal("first request denied")
	}
	if rl.Allow() {
		t.Fatal("empty bucket allowed request")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("refilled bucket denied request")
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}
