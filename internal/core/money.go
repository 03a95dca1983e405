// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Decimal strings and floats coming from
// forms and JSON are converted at the edges with shopspring/decimal so no
// float arithmetic leaks into totals.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents caps a single amount well below int64 overflow when summed.
const maxCents = int64(1) << 50

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for malformed, negative, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("0.004")  -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return centsFromDecimal(d)
}

// CentsFromFloat converts a JSON number to cents with half-up rounding.
func CentsFromFloat(f float64) (int64, error) {
	return centsFromDecimal(decimal.NewFromFloat(f))
}

func centsFromDecimal(d decimal.Decimal) (int64, error) {
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThanOrEqual(decimal.NewFromInt(maxCents)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Dollars returns the amount as a float64 for JSON output and display.
// Use cents for calculations.
func (m Money) Dollars() float64 {
	f, _ := decimal.New(m.Cents, -2).Float64()
	return f
}

// String formats the amount with two decimals and no currency symbol, e.g. "12.30".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Display formats the amount as dollars, e.g. "$12.30".
func (m Money) Display() string {
	if m.Cents < 0 {
		return "-$" + Money{Cents: -m.Cents}.String()
	}
	return "$" + m.String()
}
