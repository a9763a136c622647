// Package money implements two-decimal currency amounts on top of
// shopspring/decimal. Amounts are rounded half away from zero, which is
// half-up for the non-negative prices and totals the cart deals in.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal digits carried by every amount.
const Places = 2

// Money is an exact currency amount with two decimal places.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{d: decimal.Zero}

// New builds an amount from a decimal, rounding to two places.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Places)}
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Places)}
}

// Parse parses a decimal string such as "10.00" or "3.5".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return New(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MulInt returns m × q without any intermediate precision loss.
func (m Money) MulInt(q int) Money {
	return New(m.d.Mul(decimal.NewFromInt(int64(q))))
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return New(m.d.Add(o.d))
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return New(m.d.Sub(o.d))
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Equal compares amounts numerically.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Cmp returns -1, 0 or 1.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.d.Shift(Places).Round(0).IntPart()
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.d.StringFixed(Places)
}

// MarshalJSON renders a bare JSON number with two decimals, e.g. 40.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	data = bytes.Trim(data, `"`)
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
