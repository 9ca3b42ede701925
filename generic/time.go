package generic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day with no time-of-day and no location
// =============================================================================

// Date is a calendar day. All leave arithmetic works on calendar days, never
// instants, so Date carries no clock and no time zone. It is comparable and
// safe to use as a map key.
type Date struct {
	year  int
	month time.Month
	day   int
}

const DateLayout = "2006-01-02"

// NewDate builds a Date, normalizing out-of-range values the way time.Date does
// (e.g. March 32 becomes April 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// Today returns the current UTC calendar day.
func Today() Date { return DateOf(time.Now().UTC()) }

// ParseDate accepts "2006-01-02" and full RFC3339 timestamps. A timestamp is
// reduced to its calendar day in its own offset.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Year() int { return d.year }
func (d Date) Month() time.Month { return d.month }
func (d Date) Day() int { return d.day }
func (d Date) IsZero() bool { return d == Date{} }
func (d Date) Time() time.Time { return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC) }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) YearMonth() YearMonth { return NewYearMonth(d.year, d.month) }

// IsWeekend reports Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }
func (d Date) BeforeOrEqual(o Date) bool { return d.Compare(o) <= 0 }
func (d Date) AfterOrEqual(o Date) bool { return d.Compare(o) >= 0 }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// DaysBetween returns the number of days from a to b (negative when b < a).
// It counts in Unix seconds; time.Duration saturates after ~292 years.
func DaysBetween(from, to Date) int {
	return int((to.Time().Unix() - from.Time().Unix()) / 86400)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// =============================================================================
// YEAR-MONTH - Accrual marker key
// =============================================================================

// YearMonth is a "YYYY-MM" key. Zero-padded keys sort lexically in time order.
type YearMonth string

func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth(fmt.Sprintf("%04d-%02d", year, int(month)))
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid year-month %q: expected YYYY-MM", s)
	}
	return NewYearMonth(t.Year(), t.Month()), nil
}

func (ym YearMonth) IsZero() bool { return ym == "" }

func (ym YearMonth) Before(o YearMonth) bool { return ym < o }

// MonthsUntil returns how many months lie after ym up to and including o.
// Returns 0 when o is not after ym.
func (ym YearMonth) MonthsUntil(o YearMonth) int {
	a, errA := time.Parse("2006-01", string(ym))
	b, errB := time.Parse("2006-01", string(o))
	if errA != nil || errB != nil {
		return 0
	}
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if n < 0 {
		return 0
	}
	return n
}
