package generic

// =============================================================================
// PERIOD - Closed range of calendar days
// =============================================================================

// Period is the closed range [Start, End]. A leave request covers one Period.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates start <= end.
func NewPeriod(start, end Date) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects zero dates and reversed ranges.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "date_range", Message: "start and end dates are required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "date_range", Message: ErrInvalidPeriod.Error(), Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Len is the inclusive number of calendar days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns every calendar day in the period.
func (p Period) Days() []Date {
	days := make([]Date, 0, p.Len())
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
