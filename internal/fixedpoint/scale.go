// Package fixedpoint provides overflow-checked fixed-point conversion
// between token amounts expressed in different base-10 precisions.
// All arithmetic is 256-bit unsigned with 512-bit intermediates.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// MaxDecimals is the largest supported decimal precision. 10^77 is the
// largest power of ten that fits a 256-bit unsigned integer.
const MaxDecimals = 77

var (
	// ErrDecimalsOutOfRange is returned when a precision is zero or above MaxDecimals.
	ErrDecimalsOutOfRange = errors.New("fixedpoint: decimals out of range [1,77]")

	ten = uint256.NewInt(10)
)

// Scale is an immutable pair of power-of-ten multipliers used by Convert.
// FeedScale anchors the feed token's own precision; PriceScale carries the
// precision gap between the rate and the quote unit. Both components are
// always integer powers of ten in [10^0, 10^77].
type Scale struct {
	FeedScale  *uint256.Int
	PriceScale *uint256.Int
}

// Pow10 returns 10^n. n must be at most MaxDecimals; larger exponents do not
// fit 256 bits and are reported as ErrDecimalsOutOfRange.
func Pow10(n int) (*uint256.Int, error) {
	if n < 0 || n > MaxDecimals {
		return nil, ErrDecimalsOutOfRange
	}
	return new(uint256.Int).Exp(ten, uint256.NewInt(uint64(n))), nil
}

// CheckDecimals validates a reported token precision. Zero and values above
// MaxDecimals are unusable: converting with them would be off by whole orders
// of magnitude, so callers must fail instead of substituting a default.
func CheckDecimals(decimals int) error {
	if decimals <= 0 || decimals > MaxDecimals {
		return ErrDecimalsOutOfRange
	}
	return nil
}

// ResolveScale computes the Scale for a feed token with feedDecimals, a quote
// unit with quoteDecimals, and a rate expressed in rateDecimals. The factoring
// keeps both components non-negative powers of ten:
//
//	quoteDecimals >= rateDecimals: FeedScale = 10^feedDecimals,
//	                               PriceScale = 10^(quoteDecimals-rateDecimals)
//	quoteDecimals <  rateDecimals: FeedScale = 10^(feedDecimals+rateDecimals-quoteDecimals),
//	                               PriceScale = 10^0
//
// Either way the forward identity holds with a single full-width mul-div:
//
//	out = in * rate * 10^quoteDecimals / (10^feedDecimals * 10^rateDecimals)
//
// The inputs must already have passed CheckDecimals, and the combined
// exponent must not exceed MaxDecimals (callers reject such configurations
// up front); within that domain the function is total.
func ResolveScale(feedDecimals, quoteDecimals, rateDecimals int) (Scale, error) {
	var feedExp, priceExp int
	if quoteDecimals >= rateDecimals {
		feedExp = feedDecimals
		priceExp = quoteDecimals - rateDecimals
	} else {
		feedExp = feedDecimals + rateDecimals - quoteDecimals
		priceExp = 0
	}

	feedScale, err := Pow10(feedExp)
	if err != nil {
		return Scale{}, err
	}
	priceScale, err := Pow10(priceExp)
	if err != nil {
		return Scale{}, err
	}
	return Scale{FeedScale: feedScale, PriceScale: priceScale}, nil
}
