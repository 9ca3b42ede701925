package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ACCRUAL GATE - Monthly credit, at most once per employee per month
// =============================================================================

// AccrualDue returns the credit owed to reach target, or ok=false when the
// ledger is already accrued through target.
//
// An empty marker means the employee has never accrued: one month is owed.
// Otherwise every month after the marker up to and including target is owed.
func AccrualDue(l EmployeeLedger, target generic.YearMonth, monthly decimal.Decimal) (delta decimal.Decimal, ok bool) {
	months := 1
	if !l.LastAccruedYearMonth.IsZero() {
		if !l.LastAccruedYearMonth.Before(target) {
			return decimal.Zero, false
		}
		months = l.LastAccruedYearMonth.MonthsUntil(target)
	}
	return monthly.Mul(decimal.NewFromInt(int64(months))), true
}

// AccrualGate brings an employee's pool up to date before allocation reads it.
type AccrualGate struct {
	ledger *BalanceLedger
}

func NewAccrualGate(ledger *BalanceLedger) *AccrualGate {
	return &AccrualGate{ledger: ledger}
}

// Ensure credits the pool through target if it is behind. Re-invoking for an
// accrued month is a no-op and returns cur unchanged.
func (g *AccrualGate) Ensure(ctx context.Context, emp Employee, policy LeavePolicy, target generic.YearMonth) (EmployeeLedger, bool, error) {
	delta, due := AccrualDue(emp.Ledger, target, policy.MonthlyAccrual)
	if !due {
		return emp.Ledger, false, nil
	}
	next, err := g.ledger.Credit(ctx, emp.ID, emp.Ledger, delta, target)
	if err != nil {
		return EmployeeLedger{}, false, err
	}
	return next, true, nil
}
