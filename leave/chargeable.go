package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// CHARGEABLE DAYS
// =============================================================================

// DayCharge is the contribution of one day to the chargeable total.
type DayCharge struct {
	Date     generic.Date    `json:"date"`
	Excluded bool            `json:"excluded"`
	HalfDay  bool            `json:"half_day"`
	Charge   decimal.Decimal `json:"charge"`
}

// Chargeable is the result of walking a resolved range.
type Chargeable struct {
	Days            decimal.Decimal
	RangeLength     int
	HasExcludedDay  bool
	SandwichApplied bool
	Breakdown       []DayCharge
}

// ChargeableDays sums the per-day contributions of a resolved range.
//
// A day contributes 1, or 0.5 when it is a half-day. Excluded days contribute
// 0 unless the sandwich rule applies, in which case every day in the range is
// charged as if it were a working day:
//
//	applySandwich = enabled && len(days) > minDays && any day excluded
func ChargeableDays(days []ResolvedDay, sandwich SandwichPolicy) Chargeable {
	res := Chargeable{RangeLength: len(days), Days: decimal.Zero}

	for _, d := range days {
		if d.Excluded {
			res.HasExcludedDay = true
			break
		}
	}
	res.SandwichApplied = sandwich.Enabled && res.RangeLength > sandwich.MinDays && res.HasExcludedDay

	res.Breakdown = make([]DayCharge, 0, len(days))
	for _, d := range days {
		charge := dayWeight(d)
		if d.Excluded && !res.SandwichApplied {
			charge = decimal.Zero
		}
		res.Breakdown = append(res.Breakdown, DayCharge{
			Date:     d.Date,
			Excluded: d.Excluded,
			HalfDay:  d.HalfDay,
			Charge:   charge,
		})
		res.Days = res.Days.Add(charge)
	}

	res.Days = generic.ClampZero(res.Days)
	return res
}

func dayWeight(d ResolvedDay) decimal.Decimal {
	if d.HalfDay {
		return generic.HalfDay
	}
	return generic.OneDay
}

// ChargeableForPeriod resolves p against the calendar and counts it.
func ChargeableForPeriod(cal *Calendar, p generic.Period, sandwich SandwichPolicy) (Chargeable, error) {
	days, err := cal.Resolve(p)
	if err != nil {
		return Chargeable{}, err
	}
	return ChargeableDays(days, sandwich), nil
}
