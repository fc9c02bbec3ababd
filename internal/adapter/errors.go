package adapter

import "errors"

// Every condition below aborts the calling operation with no partial result.
// None are retried here; retry is an integrator concern.
var (
	// ErrInvalidConfiguration signals a missing required identity at setup.
	ErrInvalidConfiguration = errors.New("adapter: invalid configuration")

	// ErrUnverifiable signals that the vault's reported underlying asset
	// could not be established to match the configured asset.
	ErrUnverifiable = errors.New("adapter: underlying asset unverifiable")

	// ErrPairNotSupported signals a base/quote combination outside the two
	// supported ordered pairs.
	ErrPairNotSupported = errors.New("adapter: pair not supported")

	// ErrInvalidAnswer signals a zero or failed upstream rate read.
	ErrInvalidAnswer = errors.New("adapter: invalid upstream answer")

	// ErrUnsupportedDecimals signals a reported precision that is missing,
	// zero, or beyond the representable bound.
	ErrUnsupportedDecimals = errors.New("adapter: unsupported decimals")
)
