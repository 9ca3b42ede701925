package leave

import (
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// DAY OVERRIDES
// =============================================================================

type OverrideKind string

const (
	OverrideWorking OverrideKind = "WORKING"
	OverrideHoliday OverrideKind = "HOLIDAY"
	OverrideHalfDay OverrideKind = "HALF_DAY"
)

func ParseOverrideKind(s string) (OverrideKind, error) {
	k := OverrideKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case OverrideWorking, OverrideHoliday, OverrideHalfDay:
		return k, nil
	}
	return "", generic.NewValidation("kind", "unknown override kind %q", s)
}

// DayOverride replaces the base calendar for one company day.
// At most one exists per (CompanyID, Date).
type DayOverride struct {
	ID        string
	CompanyID string
	Date      generic.Date
	Kind      OverrideKind
	Note      string
	CreatedAt time.Time
}

// =============================================================================
// CALENDAR RESOLVER
// =============================================================================

// ResolvedDay is the calendar verdict for one day.
type ResolvedDay struct {
	Date     generic.Date
	Excluded bool
	HalfDay  bool
}

// Calendar merges weekends, bank holidays and overrides. Overrides win.
type Calendar struct {
	holidays  map[generic.Date]struct{}
	overrides map[generic.Date]OverrideKind
}

// NewCalendar builds a resolver. If the overrides slice holds the same date
// twice, the later entry wins.
func NewCalendar(bankHolidays []generic.Date, overrides []DayOverride) *Calendar {
	c := &Calendar{
		holidays:  make(map[generic.Date]struct{}, len(bankHolidays)),
		overrides: make(map[generic.Date]OverrideKind, len(overrides)),
	}
	for _, d := range bankHolidays {
		c.holidays[d] = struct{}{}
	}
	for _, o := range overrides {
		c.overrides[o.Date] = o.Kind
	}
	return c
}

// CalendarFor builds the resolver for a company.
func CalendarFor(company Company, overrides []DayOverride) *Calendar {
	return NewCalendar(company.BankHolidays, overrides)
}

// ResolveDay applies the precedence rules to one day.
func (c *Calendar) ResolveDay(d generic.Date) ResolvedDay {
	day := ResolvedDay{Date: d}

	switch c.overrides[d] {
	case OverrideWorking:
		return day
	case OverrideHoliday:
		day.Excluded = true
		return day
	case OverrideHalfDay:
		day.HalfDay = true
		return day
	}

	_, holiday := c.holidays[d]
	day.Excluded = d.IsWeekend() || holiday
	return day
}

// Resolve returns one verdict per calendar day of p.
func (c *Calendar) Resolve(p generic.Period) ([]ResolvedDay, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	days := make([]ResolvedDay, 0, p.Len())
	for _, d := range p.Days() {
		days = append(days, c.ResolveDay(d))
	}
	return days, nil
}
