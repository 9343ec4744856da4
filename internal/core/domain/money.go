package domain

import (
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// QuoteDecimals is the minor-unit precision of the quote currency.
const QuoteDecimals = 6

// TotalCost multiplies price by quantity, failing instead of wrapping.
func TotalCost(price, quantity uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, quantity)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// SplitFee returns the fee taken from total at feeBps basis points and the
// remaining owner proceeds. feeBps above 10000 takes the full total.
func SplitFee(total uint64, feeBps uint32) (fee, proceeds uint64) {
	if feeBps >= 10_000 {
		return total, 0
	}
	// total * feeBps cannot overflow: feeBps < 2^14 and the high word is kept.
	hi, lo := bits.Mul64(total, uint64(feeBps))
	fee, _ = bits.Div64(hi, lo, 10_000)
	return fee, total - fee
}

// FormatQuote renders a minor-unit quote amount as a decimal string,
// e.g. 10_000_000 -> "10".
func FormatQuote(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -QuoteDecimals).String()
}
