package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how fractional minor units are resolved.
type Rounding string

const (
	RoundHalfUp   Rounding = "half_up"
	RoundHalfEven Rounding = "half_even"
	RoundDown     Rounding = "down"
	RoundUp       Rounding = "up"
)

func ParseRounding(value string) (Rounding, error) {
	switch r := Rounding(strings.ToLower(strings.TrimSpace(value))); r {
	case "":
		return RoundHalfUp, nil
	case RoundHalfUp, RoundHalfEven, RoundDown, RoundUp:
		return r, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", value)
	}
}

// TaxCalculator computes order tax on integer amounts in the smallest currency unit.
type TaxCalculator struct {
	rate     decimal.Decimal
	rounding Rounding
}

func NewTaxCalculator(rate string, rounding string) (*TaxCalculator, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return nil, fmt.Errorf("parse tax rate %q: %w", rate, err)
	}
	if parsed.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	mode, err := ParseRounding(rounding)
	if err != nil {
		return nil, err
	}
	return &TaxCalculator{rate: parsed, rounding: mode}, nil
}

// MustTaxCalculator panics on invalid input. Meant for tests and constants.
func MustTaxCalculator(rate string, rounding string) *TaxCalculator {
	calc, err := NewTaxCalculator(rate, rounding)
	if err != nil {
		panic(err)
	}
	return calc
}

func (t *TaxCalculator) Rate() decimal.Decimal {
	return t.rate
}

func (t *TaxCalculator) Rounding() Rounding {
	return t.rounding
}

// Tax returns round(subtotal * rate).
func (t *TaxCalculator) Tax(subtotal int64) int64 {
	return t.Round(decimal.NewFromInt(subtotal).Mul(t.rate))
}

// Totals returns the tax and the grand total for a subtotal.
func (t *TaxCalculator) Totals(subtotal int64) (tax int64, total int64) {
	tax = t.Tax(subtotal)
	return tax, subtotal + tax
}

// Gross returns round(amount * (1 + rate)), used for tax-inclusive line prices.
func (t *TaxCalculator) Gross(amount int64) int64 {
	return t.Round(decimal.NewFromInt(amount).Mul(decimal.NewFromInt(1).Add(t.rate)))
}

func (t *TaxCalculator) Round(value decimal.Decimal) int64 {
	switch t.rounding {
	case RoundHalfEven:
		return value.RoundBank(0).IntPart()
	case RoundDown:
		return value.Floor().IntPart()
	case RoundUp:
		return value.Ceil().IntPart()
	default:
		return value.Round(0).IntPart()
	}
}
