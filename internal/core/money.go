// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and reais representations.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds every stored amount (R$ 1 trillion).
const MaxAmountCents int64 = 100_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmountCents)

// CentsFromDecimal converts reais to Money, rounding half-up to the cent.
// Negative values and values above MaxAmountCents are ErrInvalidAmount.
func CentsFromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Shift(2).Round(0)
	if c.IsNegative() || c.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: c.IntPart()}, nil
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero is a valid amount.
// Returns an error for invalid formats, signs or out-of-range values.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	m, err := CentsFromDecimal(d)
	if err != nil {
		return 0, err
	}
	return m.Cents, nil
}

// LenientCents coerces a loosely typed stored or imported value into Money.
// Anything that is missing, non-numeric, non-finite, negative or out of
// range becomes zero and ok is false, so a single bad record never aborts
// a report. Floats and strings round the same way.
func LenientCents(v any) (m Money, ok bool) {
	switch x := v.(type) {
	case nil:
		return Money{}, false
	case int64:
		if x < 0 || x > MaxAmountCents {
			return Money{}, false
		}
		return Money{Cents: x}, true
	case int:
		return LenientCents(int64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Money{}, false
		}
		m, err := CentsFromDecimal(decimal.NewFromFloat(x))
		return m, err == nil
	case []byte:
		return LenientCents(string(x))
	case string:
		cents, err := ParseDecimalToCents(x)
		if err != nil {
			return Money{}, false
		}
		return Money{Cents: cents}, true
	default:
		return Money{}, false
	}
}

// Reais returns the value as a float64 for display and JSON purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount in Brazilian notation, e.g. "R$ 1.234,56".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := fmt.Sprintf("R$ %s,%02d", b.String(), cents%100)
	if neg {
		return "-" + s
	}
	return s
}
