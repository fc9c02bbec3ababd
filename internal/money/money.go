// Package money provides the basis-point type used for deviation
// thresholds. Conversion amounts themselves stay in uint256 and never pass
// through here.
package money

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// BPSScale is the basis-point denominator: 100% = 10000 bps.
const BPSScale int64 = 10000

// BPS represents basis points (1 bps = 0.01% = 0.0001).
type BPS int64

// NewBPSFromInt creates BPS directly from basis points.
func NewBPSFromInt(bps int64) BPS {
	return BPS(bps)
}

// GreaterThan returns a > b.
func (a BPS) GreaterThan(b BPS) bool {
	return a > b
}

// Float64 returns the percentage as float (e.g., 50 bps = 0.5).
func (a BPS) Float64() float64 {
	return float64(a) / 100.0
}

// Percent returns as percentage string (e.g., "0.50%").
func (a BPS) Percent() string {
	return fmt.Sprintf("%.2f%%", float64(a)/100.0)
}

// String returns basis points as string (e.g., "50 bps").
func (a BPS) String() string {
	return fmt.Sprintf("%d bps", a)
}

// Int64 returns raw basis points value.
func (a BPS) Int64() int64 {
	return int64(a)
}

// DeviationBPS returns |current - previous| relative to previous, in basis
// points. A zero previous value yields zero; the caller alerts on the zero
// rate itself, not on its deviation. Deviations beyond the int64 range are
// clamped to MaxInt64.
func DeviationBPS(previous, current *uint256.Int) BPS {
	if previous == nil || current == nil || previous.IsZero() {
		return 0
	}

	diff := new(uint256.Int)
	if current.Gt(previous) {
		diff.Sub(current, previous)
	} else {
		diff.Sub(previous, current)
	}

	scaled, overflow := new(uint256.Int).MulDivOverflow(diff, uint256.NewInt(uint64(BPSScale)), previous)
	if overflow || !scaled.IsUint64() || scaled.Uint64() > math.MaxInt64 {
		return BPS(math.MaxInt64)
	}
	return BPS(scaled.Uint64())
}
