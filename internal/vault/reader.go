// Package vault reads rate and metadata from Yearn-style vault contracts.
// Every read is modeled as an explicit fallible lookup; discovery calls that
// have an alternate encoding run as a two-step probe sequence where the
// second step is attempted only when the first fails.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrProbeExhausted is returned when every step of a probe sequence failed.
	ErrProbeExhausted = errors.New("vault: all probe steps failed")

	// ErrBadAnswer is returned when a call succeeds but the response cannot
	// be decoded into the expected shape.
	ErrBadAnswer = errors.New("vault: malformed answer")
)

// TokenReader is the read contract shared by any ERC-20-shaped token.
type TokenReader interface {
	// Decimals reports the token's decimal precision. Implementations probe
	// an alternate encoding on failure but never substitute a default.
	Decimals(ctx context.Context) (int, error)

	// DisplaySymbol returns the token's human-readable symbol. Cosmetic
	// only; responses over the byte budget are rejected by the reader.
	DisplaySymbol(ctx context.Context) (string, error)
}

// Reader is the narrow read contract of a vault collaborator.
type Reader interface {
	TokenReader

	// Rate returns the current per-share exchange rate expressed in the
	// underlying asset's own precision. Never cached.
	Rate(ctx context.Context) (*uint256.Int, error)

	// UnderlyingAsset reports the vault's underlying asset address.
	UnderlyingAsset(ctx context.Context) (common.Address, error)
}

// FallbackRecorder is notified when a probe step succeeds only after an
// earlier step failed. Implementations must be safe for concurrent use.
type FallbackRecorder interface {
	RecordProbeFallback(ctx context.Context, method string)
}

// lookup is one fallible read in a probe sequence.
type lookup[T any] struct {
	method string
	call   func(ctx context.Context) (T, error)
}

// probeOutcome records how a single lookup went.
type probeOutcome struct {
	method string
	err    error
}

// probe runs the lookups in order, stopping at the first success. Later
// steps run only after earlier ones failed; a success past the first step
// is reported to rec. When every step fails the result is terminal: the
// caller must fail closed, not guess.
func probe[T any](ctx context.Context, rec FallbackRecorder, steps []lookup[T]) (T, error) {
	var zero T
	outcomes := make([]probeOutcome, 0, len(steps))
	for _, step := range steps {
		v, err := step.call(ctx)
		if err == nil {
			if len(outcomes) > 0 && rec != nil {
				rec.RecordProbeFallback(ctx, step.method)
			}
			return v, nil
		}
		outcomes = append(outcomes, probeOutcome{method: step.method, err: err})
	}

	msg := ""
	for i, o := range outcomes {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %v", o.method, o.err)
	}
	return zero, fmt.Errorf("%w: %s", ErrProbeExhausted, msg)
}
