package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// BALANCE LEDGER - The only component that writes balance fields
// =============================================================================

// BalanceLedger applies allocations and accrual credits to an employee's
// ledger document. Every write is one compare-and-swap through
// Store.UpdateLedger.
type BalanceLedger struct {
	store Store
}

func NewBalanceLedger(store Store) *BalanceLedger {
	return &BalanceLedger{store: store}
}

// ApplyAllocation computes the post-approval ledger without writing it.
//
//	pool    -= paid + casual + sick     (unpaid never touches the pool)
//	usage[b] += alloc[b]                for all four buckets
//	balance[b] = max(0, cap[b] - usage[b])
func ApplyAllocation(cur EmployeeLedger, alloc Buckets, caps TypeCaps) EmployeeLedger {
	next := cur
	next.TotalLeaveAvailable = cur.TotalLeaveAvailable.Sub(alloc.Pooled())
	next.Usage = cur.Usage.Plus(alloc)
	next.Balances = DeriveBalances(next.Usage, caps)
	return next
}

// DeriveBalances recomputes the display-only balances from usage and caps.
// Unpaid has no cap, so its balance is always zero.
func DeriveBalances(usage Buckets, caps TypeCaps) Buckets {
	var b Buckets
	for _, t := range []LeaveType{Paid, Casual, Sick} {
		capT, _ := caps.Cap(t)
		b = b.With(t, generic.ClampZero(capT.Sub(usage.Get(t))))
	}
	return b.With(Unpaid, decimal.Zero)
}

// Commit writes next over cur. It fails with ErrConcurrentModification when
// cur is stale and NotFoundError when the employee vanished.
func (l *BalanceLedger) Commit(ctx context.Context, employeeID string, cur, next EmployeeLedger) (EmployeeLedger, error) {
	if err := l.store.UpdateLedger(ctx, employeeID, cur.Version, next); err != nil {
		return EmployeeLedger{}, fmt.Errorf("update ledger of employee %s: %w", employeeID, err)
	}
	next.Version = cur.Version + 1
	return next, nil
}

// Apply funds an approved request.
func (l *BalanceLedger) Apply(ctx context.Context, employeeID string, cur EmployeeLedger, alloc Buckets, caps TypeCaps) (EmployeeLedger, error) {
	return l.Commit(ctx, employeeID, cur, ApplyAllocation(cur, alloc, caps))
}

// Credit adds delta to the pool and advances the accrual marker.
func (l *BalanceLedger) Credit(ctx context.Context, employeeID string, cur EmployeeLedger, delta decimal.Decimal, marker generic.YearMonth) (EmployeeLedger, error) {
	next := cur
	next.TotalLeaveAvailable = cur.TotalLeaveAvailable.Add(delta)
	next.LastAccruedYearMonth = marker
	return l.Commit(ctx, employeeID, cur, next)
}

// Recompute rewrites the derived balances, e.g. after a policy change.
func (l *BalanceLedger) Recompute(ctx context.Context, employeeID string, cur EmployeeLedger, caps TypeCaps) (EmployeeLedger, error) {
	next := cur
	next.Balances = DeriveBalances(cur.Usage, caps)
	return l.Commit(ctx, employeeID, cur, next)
}
