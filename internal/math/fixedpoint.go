package math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// All custody amounts are fixed-point integers with 18 fractional decimal
// digits, held in big.Int to rule out floating-point error and overflow.

// Decimals is the fractional precision of every ledger amount.
const Decimals = 18

// PricePrecision is the number of fractional digits a decorated price keeps.
const PricePrecision = 5

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Scale returns 10^Decimals as a fresh big.Int.
func Scale() *big.Int {
	return new(big.Int).Set(scale)
}

// Units converts n whole asset units to the fixed-point representation.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), scale)
}

// ParseAmount parses a human-readable decimal string ("1.5") into a
// fixed-point amount. Amounts with more than Decimals fractional digits
// or non-positive values are rejected.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("parse amount %q: must be positive", s)
	}

	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("parse amount %q: more than %d fractional digits", s, Decimals)
	}
	return shifted.BigInt(), nil
}

// FormatAmount renders a fixed-point amount as a decimal string.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -Decimals).String()
}

// PercentFloor computes amount * pct / 100, rounded down to the integer
// unit. This is the fee rule: the remainder stays with the payer.
func PercentFloor(amount *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}

// PriceRatio computes quote/base as a decimal rounded to PricePrecision
// fractional digits, half away from zero. A zero base yields zero.
func PriceRatio(quote, base *big.Int) decimal.Decimal {
	if base == nil || base.Sign() == 0 {
		return decimal.Zero
	}
	q := decimal.NewFromBigInt(quote, -Decimals)
	b := decimal.NewFromBigInt(base, -Decimals)
	return q.DivRound(b, PricePrecision+4).Round(PricePrecision)
}

// ToDecimal converts a fixed-point amount to its decimal display value.
func ToDecimal(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -Decimals)
}
