// Package money holds currency amounts as integer minor units (centavos).
// Decimal text is only parsed or produced at the edges.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is the currency sign used on receipts.
const Symbol = "₱"

const minorDigits = 2

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
	ErrTooPrecise     = errors.New("amount has more than 2 decimal places")
	ErrOverflow       = fmt.Errorf("%w: out of range", ErrInvalidAmount)
)

// Amount is a quantity of money in minor currency units.
type Amount int64

// FromMajor converts whole currency units (e.g. 55 pesos) to an Amount.
func FromMajor(units int64) Amount { return Amount(units * 100) }

// Parse reads a non-negative decimal string such as "150", "150.5" or "150.50".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), Symbol))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	if !d.Equal(d.Truncate(minorDigits)) {
		return 0, ErrTooPrecise
	}
	minor := d.Shift(minorDigits).BigInt()
	if !minor.IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return Amount(minor.Int64()), nil
}

// MustParse is Parse for constants in tests and seed data; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Mul multiplies a unit amount by a quantity. Callers holding unchecked
// input use CheckedMul.
func (a Amount) Mul(qty int) Amount { return a * Amount(qty) }

// CheckedMul is Mul for non-negative operands, failing with ErrOverflow
// instead of wrapping.
func (a Amount) CheckedMul(qty int) (Amount, error) {
	if a < 0 || qty < 0 {
		return 0, ErrNegativeAmount
	}
	if qty != 0 && int64(a) > math.MaxInt64/int64(qty) {
		return 0, ErrOverflow
	}
	return a * Amount(qty), nil
}

// CheckedAdd is a + b for non-negative operands, failing with ErrOverflow
// instead of wrapping.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegativeAmount
	}
	if a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -minorDigits) }

// String renders the amount with exactly two decimals, e.g. "110.00".
func (a Amount) String() string { return a.Decimal().StringFixed(minorDigits) }

// Format renders the amount with the currency symbol, e.g. "₱110.00".
func (a Amount) Format() string { return Symbol + a.String() }
