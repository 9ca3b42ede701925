/*
engine_test.go - Tests for the pure engine: calendar, chargeable days,
allocation and the ledger arithmetic.

Reference week (March 2025):
  Mon 10  Tue 11  Wed 12  Thu 13  Fri 14  Sat 15  Sun 16  Mon 17
*/
package leave

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.Date { return generic.MustParseDate(s) }

func days(v float64) decimal.Decimal { return generic.Days(v) }

func period(start, end string) generic.Period {
	return generic.Period{Start: date(start), End: date(end)}
}

func assertDays(t *testing.T, want float64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !days(want).Equal(got) {
		assert.Fail(t, fmt.Sprintf("want %v days, got %s", want, got), msgAndArgs...)
	}
}

func chargeable(t *testing.T, cal *Calendar, start, end string, sandwich SandwichPolicy) Chargeable {
	t.Helper()
	res, err := ChargeableForPeriod(cal, period(start, end), sandwich)
	require.NoError(t, err)
	return res
}

// =============================================================================
// CALENDAR RESOLVER
// =============================================================================

func TestCalendar_WeekendsAndBankHolidaysExcluded(t *testing.T) {
	cal := NewCalendar([]generic.Date{date("2025-03-12")}, nil)

	assert.False(t, cal.ResolveDay(date("2025-03-11")).Excluded)
	assert.True(t, cal.ResolveDay(date("2025-03-12")).Excluded, "bank holiday")
	assert.True(t, cal.ResolveDay(date("2025-03-15")).Excluded, "saturday")
	assert.True(t, cal.ResolveDay(date("2025-03-16")).Excluded, "sunday")
}

func TestCalendar_OverrideWins(t *testing.T) {
	// GIVEN: a bank holiday on Wednesday overridden to WORKING, a Saturday
	//        overridden to HALF_DAY and a Tuesday overridden to HOLIDAY
	cal := NewCalendar([]generic.Date{date("2025-03-12")}, []DayOverride{
		{Date: date("2025-03-12"), Kind: OverrideWorking},
		{Date: date("2025-03-15"), Kind: OverrideHalfDay},
		{Date: date("2025-03-11"), Kind: OverrideHoliday},
	})

	wed := cal.ResolveDay(date("2025-03-12"))
	assert.False(t, wed.Excluded)
	assert.False(t, wed.HalfDay)

	sat := cal.ResolveDay(date("2025-03-15"))
	assert.False(t, sat.Excluded, "half-day override is not excluded even on a weekend")
	assert.True(t, sat.HalfDay)

	assert.True(t, cal.ResolveDay(date("2025-03-11")).Excluded)
}

func TestCalendar_LaterDuplicateOverrideWins(t *testing.T) {
	cal := NewCalendar(nil, []DayOverride{
		{Date: date("2025-03-11"), Kind: OverrideHoliday},
		{Date: date("2025-03-11"), Kind: OverrideWorking},
	})
	assert.False(t, cal.ResolveDay(date("2025-03-11")).Excluded)
}

func TestCalendar_ResolveRejectsReversedRange(t *testing.T) {
	_, err := NewCalendar(nil, nil).Resolve(period("2025-03-14", "2025-03-10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// CHARGEABLE DAYS
// =============================================================================

func TestChargeable_WorkWeek(t *testing.T) {
	// GIVEN: Mon-Fri, no holidays
	// THEN: 5 chargeable days
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-10", "2025-03-14", SandwichPolicy{})
	assertDays(t, 5, res.Days)
	assert.Equal(t, 5, res.RangeLength)
	assert.False(t, res.HasExcludedDay)
}

func TestChargeable_WeekendExcluded(t *testing.T) {
	// GIVEN: Fri-Mon, sandwich disabled
	// THEN: Fri + Mon only
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-14", "2025-03-17", SandwichPolicy{})
	assertDays(t, 2, res.Days)
	assert.True(t, res.HasExcludedDay)
	assert.False(t, res.SandwichApplied)
}

func TestChargeable_SandwichCharged(t *testing.T) {
	// GIVEN: Fri-Mon, sandwich enabled with minDays=2
	// THEN: range length 4 > 2 and touches a weekend, so all 4 days are charged
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-14", "2025-03-17", SandwichPolicy{Enabled: true, MinDays: 2})
	assertDays(t, 4, res.Days)
	assert.True(t, res.SandwichApplied)
}

func TestChargeable_SandwichNeedsStrictlyLongerRange(t *testing.T) {
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-14", "2025-03-17", SandwichPolicy{Enabled: true, MinDays: 4})
	assertDays(t, 2, res.Days)
	assert.False(t, res.SandwichApplied)
}

func TestChargeable_SandwichNeedsAnExcludedDay(t *testing.T) {
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-10", "2025-03-14", SandwichPolicy{Enabled: true, MinDays: 1})
	assertDays(t, 5, res.Days)
	assert.False(t, res.SandwichApplied)
}

func TestChargeable_HalfDayOverride(t *testing.T) {
	// GIVEN: Mon-Fri with Wednesday as HALF_DAY
	// THEN: 4.5
	cal := NewCalendar(nil, []DayOverride{{Date: date("2025-03-12"), Kind: OverrideHalfDay}})
	res := chargeable(t, cal, "2025-03-10", "2025-03-14", SandwichPolicy{})
	assertDays(t, 4.5, res.Days)
	assertDays(t, 0.5, res.Breakdown[2].Charge)
}

func TestChargeable_SandwichKeepsHalfDayWeight(t *testing.T) {
	// GIVEN: Fri (half day) - Mon with sandwich
	// THEN: 0.5 + 1 + 1 + 1
	cal := NewCalendar(nil, []DayOverride{{Date: date("2025-03-14"), Kind: OverrideHalfDay}})
	res := chargeable(t, cal, "2025-03-14", "2025-03-17", SandwichPolicy{Enabled: true, MinDays: 2})
	assertDays(t, 3.5, res.Days)
}

func TestChargeable_BankHolidayMidweek(t *testing.T) {
	cal := NewCalendar([]generic.Date{date("2025-03-12")}, nil)
	res := chargeable(t, cal, "2025-03-10", "2025-03-14", SandwichPolicy{})
	assertDays(t, 4, res.Days)
}

func TestChargeable_AllExcluded(t *testing.T) {
	res := chargeable(t, NewCalendar(nil, nil), "2025-03-15", "2025-03-16", SandwichPolicy{})
	assertDays(t, 0, res.Days)
}

func TestChargeable_Idempotent(t *testing.T) {
	cal := NewCalendar([]generic.Date{date("2025-03-12")}, []DayOverride{{Date: date("2025-03-11"), Kind: OverrideHalfDay}})
	sandwich := SandwichPolicy{Enabled: true, MinDays: 3}

	first := chargeable(t, cal, "2025-03-10", "2025-03-17", sandwich)
	second := chargeable(t, cal, "2025-03-10", "2025-03-17", sandwich)
	assert.True(t, first.Days.Equal(second.Days))
	assert.Equal(t, first.SandwichApplied, second.SandwichApplied)
	assert.Len(t, second.Breakdown, len(first.Breakdown))
}

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

func TestAllocate_WithinCap(t *testing.T) {
	// GIVEN: caps paid 10 casual 5, used paid 3, pool 8, 6 days of paid
	// THEN: all 6 from paid
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(6),
		Type:           Paid,
		Caps:           TypeCaps{Paid: days(10), Casual: days(5)},
		UsedSoFar:      Buckets{Paid: days(3)},
		PoolNow:        days(8),
	}, FallbackToUnpaid)
	require.NoError(t, err)

	assertDays(t, 6, alloc.Paid)
	assertDays(t, 0, alloc.Casual)
	assertDays(t, 0, alloc.Sick)
	assertDays(t, 0, alloc.Unpaid)
}

func TestAllocate_OverflowFallbackThenUnpaid(t *testing.T) {
	// GIVEN: caps paid 10 sick 5, used paid 3, pool 4, 10 days paid with sick fallback
	// THEN: paid capped by pool at 4, pool exhausted so sick gets 0, unpaid 6
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(10),
		Type:           Paid,
		FallbackType:   Sick,
		Caps:           TypeCaps{Paid: days(10), Sick: days(5)},
		UsedSoFar:      Buckets{Paid: days(3)},
		PoolNow:        days(4),
	}, FallbackToUnpaid)
	require.NoError(t, err)

	assertDays(t, 4, alloc.Paid)
	assertDays(t, 0, alloc.Sick)
	assertDays(t, 6, alloc.Unpaid)
	assertDays(t, 10, alloc.Total())
}

func TestAllocate_FallbackTakesWhatCapAndPoolAllow(t *testing.T) {
	// GIVEN: paid cap nearly used, a large pool and a sick fallback
	// THEN: paid 2, sick 3 (capped), unpaid the rest
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(8),
		Type:           Paid,
		FallbackType:   Sick,
		Caps:           TypeCaps{Paid: days(10), Sick: days(5)},
		UsedSoFar:      Buckets{Paid: days(8), Sick: days(2)},
		PoolNow:        days(20),
	}, FallbackToUnpaid)
	require.NoError(t, err)

	assertDays(t, 2, alloc.Paid)
	assertDays(t, 3, alloc.Sick)
	assertDays(t, 3, alloc.Unpaid)
}

func TestAllocate_MissingFallbackDefaultsToUnpaid(t *testing.T) {
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(5),
		Type:           Casual,
		Caps:           TypeCaps{Casual: days(2)},
		PoolNow:        days(10),
	}, FallbackToUnpaid)
	require.NoError(t, err)

	assertDays(t, 2, alloc.Casual)
	assertDays(t, 3, alloc.Unpaid)
}

func TestAllocate_MissingFallbackRequiredFails(t *testing.T) {
	_, err := Allocate(AllocationInput{
		ChargeableDays: days(5),
		Type:           Casual,
		Caps:           TypeCaps{Casual: days(2)},
		PoolNow:        days(10),
	}, FallbackRequired)
	require.Error(t, err)

	var ie *generic.InsufficientLeaveError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "Insufficient casual leave", err.Error())
	assertDays(t, 2, ie.Available)
}

func TestAllocate_MissingFallbackRequiredNotNeeded(t *testing.T) {
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(2),
		Type:           Casual,
		Caps:           TypeCaps{Casual: days(2)},
		PoolNow:        days(10),
	}, FallbackRequired)
	require.NoError(t, err)
	assertDays(t, 2, alloc.Casual)
}

func TestAllocate_UnpaidNeverTouchesPool(t *testing.T) {
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(3),
		Type:           Unpaid,
		PoolNow:        days(0),
	}, FallbackRequired)
	require.NoError(t, err)
	assertDays(t, 3, alloc.Unpaid)
	assertDays(t, 0, alloc.Pooled())
}

func TestAllocate_NegativePoolTreatedAsEmpty(t *testing.T) {
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(2),
		Type:           Paid,
		FallbackType:   Sick,
		Caps:           TypeCaps{Paid: days(10), Sick: days(10)},
		PoolNow:        days(-3),
	}, FallbackToUnpaid)
	require.NoError(t, err)
	assertDays(t, 0, alloc.Pooled())
	assertDays(t, 2, alloc.Unpaid)
}

func TestAllocate_FallbackSameAsTypeIsUnpaid(t *testing.T) {
	alloc, err := Allocate(AllocationInput{
		ChargeableDays: days(4),
		Type:           Sick,
		FallbackType:   Sick,
		Caps:           TypeCaps{Sick: days(1)},
		PoolNow:        days(10),
	}, FallbackToUnpaid)
	require.NoError(t, err)
	assertDays(t, 1, alloc.Sick)
	assertDays(t, 3, alloc.Unpaid)
}

func TestAllocate_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		in   AllocationInput
	}{
		{"negative days", AllocationInput{ChargeableDays: days(-1), Type: Paid}},
		{"unknown type", AllocationInput{ChargeableDays: days(1), Type: "vacation"}},
		{"unknown fallback", AllocationInput{ChargeableDays: days(1), Type: Paid, FallbackType: "bonus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Allocate(tt.in, FallbackToUnpaid)
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}

func TestAllocate_Invariants(t *testing.T) {
	// Property: sum(allocations) == chargeable and pooled <= max(0, pool)
	rng := rand.New(rand.NewPCG(7, 42))
	types := []LeaveType{Paid, Casual, Sick, Unpaid}
	fallbacks := []LeaveType{"", Paid, Casual, Sick, Unpaid}
	halves := func(n int) decimal.Decimal { return days(float64(rng.IntN(n*2+1)) / 2) }

	for i := 0; i < 2000; i++ {
		in := AllocationInput{
			ChargeableDays: halves(15),
			Type:           types[rng.IntN(len(types))],
			FallbackType:   fallbacks[rng.IntN(len(fallbacks))],
			Caps:           TypeCaps{Paid: halves(20), Casual: halves(10), Sick: halves(10)},
			UsedSoFar:      Buckets{Paid: halves(25), Casual: halves(12), Sick: halves(12)},
			PoolNow:        halves(30).Sub(days(5)),
		}

		alloc, err := Allocate(in, FallbackToUnpaid)
		require.NoError(t, err)

		require.True(t, alloc.Total().Equal(in.ChargeableDays), "case %d: total %s != %s", i, alloc.Total(), in.ChargeableDays)
		require.True(t, alloc.Pooled().LessThanOrEqual(generic.ClampZero(in.PoolNow)), "case %d: pooled %s > pool %s", i, alloc.Pooled(), in.PoolNow)
		for _, b := range AllTypes {
			require.False(t, alloc.Get(b).IsNegative(), "case %d: negative %s", i, b)
		}

		again, err := Allocate(in, FallbackToUnpaid)
		require.NoError(t, err)
		require.True(t, alloc.Equal(again), "case %d: allocation not deterministic", i)
	}
}

// =============================================================================
// LEDGER ARITHMETIC & ACCRUAL
// =============================================================================

func TestApplyAllocation_UpdatesPoolUsageAndBalances(t *testing.T) {
	caps := TypeCaps{Paid: days(10), Casual: days(5), Sick: days(5)}
	cur := EmployeeLedger{
		TotalLeaveAvailable: days(8),
		Usage:               Buckets{Paid: days(3)},
		Version:             4,
	}

	next := ApplyAllocation(cur, Buckets{Paid: days(4), Sick: days(1), Unpaid: days(2)}, caps)

	assertDays(t, 3, next.TotalLeaveAvailable, "unpaid does not draw on the pool")
	assertDays(t, 7, next.Usage.Paid)
	assertDays(t, 1, next.Usage.Sick)
	assertDays(t, 2, next.Usage.Unpaid)
	assertDays(t, 3, next.Balances.Paid)
	assertDays(t, 5, next.Balances.Casual)
	assertDays(t, 4, next.Balances.Sick)
	assertDays(t, 0, next.Balances.Unpaid)

	// pure: input untouched
	assertDays(t, 8, cur.TotalLeaveAvailable)
	assertDays(t, 3, cur.Usage.Paid)
}

func TestDeriveBalances_ClampsAtZero(t *testing.T) {
	b := DeriveBalances(Buckets{Casual: days(7)}, TypeCaps{Casual: days(5)})
	assertDays(t, 0, b.Casual)
}

func TestAccrualDue(t *testing.T) {
	monthly := days(1.5)
	tests := []struct {
		name   string
		marker generic.YearMonth
		target generic.YearMonth
		want   float64
		due    bool
	}{
		{"never accrued", "", "2025-03", 1.5, true},
		{"next month", "2025-02", "2025-03", 1.5, true},
		{"missed months", "2024-12", "2025-03", 4.5, true},
		{"same month", "2025-03", "2025-03", 0, false},
		{"marker ahead", "2025-05", "2025-03", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, due := AccrualDue(EmployeeLedger{LastAccruedYearMonth: tt.marker}, tt.target, monthly)
			assert.Equal(t, tt.due, due)
			assertDays(t, tt.want, delta)
		})
	}
}
