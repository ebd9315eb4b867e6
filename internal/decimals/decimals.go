// Package decimals rescales integer token amounts between decimal precisions.
package decimals

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/genius-solver/internal/errs"
)

var ten = big.NewInt(10)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// Adjust rescales amount from one precision to another. Scaling down
// truncates toward zero. The input is never modified.
func Adjust(amount *big.Int, from, to int) *big.Int {
	switch {
	case from == to:
		return new(big.Int).Set(amount)
	case from > to:
		return new(big.Int).Quo(amount, pow10(from-to))
	default:
		return new(big.Int).Mul(amount, pow10(to-from))
	}
}

// Convert is Adjust for order amounts: negative precisions are rejected and
// a nonzero amount may not collapse to zero.
func Convert(amount *big.Int, from, to int) (*big.Int, error) {
	if from == to {
		return new(big.Int).Set(amount), nil
	}
	if from < 0 || to < 0 {
		return nil, errs.Validation("InvalidDecimals: Decimals cannot be negative")
	}
	out := Adjust(amount, from, to)
	if amount.Sign() != 0 && out.Sign() == 0 {
		return nil, errs.Validation("InvalidAmount: Conversion resulted in zero")
	}
	return out, nil
}

// Parse reads a non-negative integer amount written in decimal.
func Parse(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", s)
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: not an integer", s)
	}
	return d.BigInt(), nil
}

// Share returns floor(total * ratio) evaluated in float64, so totals above
// 2^53 lose precision the same way the planners on other nodes do. A
// non-finite product yields zero.
func Share(total *big.Int, ratio float64) *big.Int {
	t, _ := new(big.Float).SetInt(total).Float64()
	product := math.Floor(t * ratio)
	if math.IsNaN(product) || math.IsInf(product, 0) {
		return new(big.Int)
	}
	out, _ := big.NewFloat(product).Int(nil)
	return out
}
