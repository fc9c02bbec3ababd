package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrZeroPrice is returned when the rate is zero in a divisor position.
	ErrZeroPrice = errors.New("fixedpoint: zero price in divisor")

	// ErrOverflow is returned when a checked multiplication would exceed 256 bits.
	ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

	maxUint256 = new(uint256.Int).SetAllOne()
)

// Convert translates inAmount between feed units and quote units at the given
// rate. inverse=false converts feed -> quote, inverse=true quote -> feed.
//
// The multiply-then-divide runs through a 512-bit intermediate, so the
// product never truncates; only the final division rounds, toward zero.
// Overflow never wraps: the priceScale*rate product is bound-checked before
// the multiplication happens, and a quotient that does not fit 256 bits is
// an error.
func Convert(inAmount, rate *uint256.Int, scale Scale, inverse bool) (*uint256.Int, error) {
	if inverse && rate.IsZero() {
		return nil, ErrZeroPrice
	}

	// Pre-check priceScale * rate against MaxUint256 / rate so the
	// multiplication is never attempted speculatively.
	if !rate.IsZero() {
		if limit := new(uint256.Int).Div(maxUint256, rate); scale.PriceScale.Gt(limit) {
			return nil, ErrOverflow
		}
	}
	priceTimes := new(uint256.Int).Mul(scale.PriceScale, rate)

	var out *uint256.Int
	var overflow bool
	if inverse {
		// priceTimes is non-zero here: rate was checked above and
		// PriceScale is a positive power of ten.
		out, overflow = fullMulDiv(inAmount, scale.FeedScale, priceTimes)
	} else {
		out, overflow = fullMulDiv(inAmount, priceTimes, scale.FeedScale)
	}
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// fullMulDiv computes floor(x*y/d) with a 512-bit intermediate product.
// The boolean reports a quotient that does not fit 256 bits. d must be
// non-zero; Convert guarantees that for both divisor positions.
func fullMulDiv(x, y, d *uint256.Int) (*uint256.Int, bool) {
	return new(uint256.Int).MulDivOverflow(x, y, d)
}
