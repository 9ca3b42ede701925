/*
Package generic provides the domain-agnostic primitives of the leave engine.

PURPOSE:
  Everything here is independent of leave policy: calendar days, closed
  date ranges, year-month keys, decimal day quantities and the error
  taxonomy shared by every layer above.

KEY CONCEPTS:
  - Date: a calendar day with no clock and no location (time.go)
  - Period: a closed range of Dates (period.go)
  - YearMonth: the "YYYY-MM" key guarding monthly accrual (time.go)
  - Day quantities: decimal.Decimal at half-day granularity (this file)
  - Errors: validation / authorization / conflict / not-found (errors.go)

DESIGN PRINCIPLES:
  1. Date-only semantics: no set-membership test ever sees a timestamp
  2. Precision: day counts use decimal.Decimal, never float64
  3. Errors carry a sentinel root so callers can use errors.Is()

SEE ALSO:
  - leave/: the ledger engine built on these types
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY QUANTITIES
// =============================================================================

var (
	HalfDay = decimal.New(5, -1)
	OneDay  = decimal.NewFromInt(1)
)

// Days builds a day quantity from a float literal. Intended for tests and
// configuration defaults; runtime values come from ParseDays.
func Days(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// ParseDays parses a decimal day quantity ("4.5", "10").
func ParseDays(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid day quantity %q: %w", s, err)
	}
	return d, nil
}

// MustParseDays returns zero on malformed input. Used when reading values the
// engine itself wrote.
func MustParseDays(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ClampZero returns max(0, d).
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinOf returns the smallest of the given quantities.
func MinOf(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	m := first
	for _, d := range rest {
		if d.LessThan(m) {
			m = d
		}
	}
	return m
}

// IsHalfDayMultiple reports whether d is a whole multiple of 0.5.
func IsHalfDayMultiple(d decimal.Decimal) bool {
	return d.Mul(decimal.NewFromInt(2)).Equal(d.Mul(decimal.NewFromInt(2)).Truncate(0))
}
