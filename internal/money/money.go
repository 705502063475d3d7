// Package money holds the minor-unit currency type used for every price,
// balance and total in the shop.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units (centavos).
type Cents int64

var hundred = decimal.NewFromInt(100)

// ErrInvalidAmount is returned when a decimal amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// FromReais converts whole currency units to cents.
func FromReais(r int64) Cents {
	return Cents(r * 100)
}

// Parse reads a decimal amount such as "12.00", "9,90" or "45" and returns
// it in cents, rounding half-up to the nearest cent.
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Cents(d.Mul(hundred).Round(0).IntPart()), nil
}

// Decimal returns the amount in whole currency units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Percent returns pct percent of c, rounded half-up to the cent.
func (c Cents) Percent(pct int64) Cents {
	d := decimal.NewFromInt(int64(c)).Mul(decimal.NewFromInt(pct)).Div(hundred)
	return Cents(d.Round(0).IntPart())
}

// Floor returns the whole currency units in c, dropping the cents.
func (c Cents) Floor() int64 {
	return c.Decimal().Floor().IntPart()
}

// Number renders c as a JSON number in currency units, e.g. 21.6 -> 21.60.
func (c Cents) Number() json.Number {
	return json.Number(c.Decimal().StringFixed(2))
}

// String formats c the way the shop displays prices: "R$ 1.234,56".
func (c Cents) String() string {
	neg := c < 0
	if neg {
		c = -c
	}
	whole := int64(c) / 100
	frac := int64(c) % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("R$ %s,%02d", b.String(), frac)
	if neg {
		return "-" + out
	}
	return out
}

// Min returns the smaller of a and b.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}
