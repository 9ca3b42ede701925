package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

// FallbackMode decides what a missing fallback type means.
type FallbackMode int

const (
	// FallbackToUnpaid treats a missing fallback as unpaid. Interactive
	// approval uses it so a manager's approval is never blocked.
	FallbackToUnpaid FallbackMode = iota

	// FallbackRequired fails with InsufficientLeaveError when the primary
	// bucket cannot cover the request and no fallback was given. Backfill
	// imports use it.
	FallbackRequired
)

// AllocationInput is everything the engine needs. It never reads the store.
type AllocationInput struct {
	ChargeableDays decimal.Decimal
	Type           LeaveType
	FallbackType   LeaveType // empty: none supplied
	Caps           TypeCaps
	UsedSoFar      Buckets
	PoolNow        decimal.Decimal
}

// Allocate splits the chargeable amount primary → fallback → unpaid.
//
// INVARIANTS:
//   - result.Total() == ChargeableDays
//   - result.Pooled() <= max(0, PoolNow)
//
// Unpaid is uncapped, so with FallbackToUnpaid the only errors are malformed
// inputs.
func Allocate(in AllocationInput, mode FallbackMode) (Buckets, error) {
	if err := in.validate(); err != nil {
		return Buckets{}, err
	}

	var alloc Buckets
	if in.Type == Unpaid {
		return alloc.With(Unpaid, in.ChargeableDays), nil
	}

	pool := generic.ClampZero(in.PoolNow)

	capType, _ := in.Caps.Cap(in.Type)
	remainType := generic.ClampZero(capType.Sub(in.UsedSoFar.Get(in.Type)))
	firstPart := generic.MinOf(in.ChargeableDays, remainType, pool)
	alloc = alloc.With(in.Type, firstPart)

	remaining := in.ChargeableDays.Sub(firstPart)
	if !remaining.IsPositive() {
		return alloc, nil
	}

	fb := in.FallbackType
	if fb == "" {
		if mode == FallbackRequired {
			return Buckets{}, &generic.InsufficientLeaveError{
				Type:      string(in.Type),
				Requested: in.ChargeableDays,
				Available: firstPart,
			}
		}
		fb = Unpaid
	}

	// A fallback equal to the primary type has nothing left to give.
	if fb != Unpaid && fb != in.Type {
		capFb, _ := in.Caps.Cap(fb)
		remainFb := generic.ClampZero(capFb.Sub(in.UsedSoFar.Get(fb)))
		poolLeftForFb := generic.ClampZero(pool.Sub(alloc.Get(in.Type)))
		useFb := generic.MinOf(remaining, remainFb, poolLeftForFb)

		alloc = alloc.Add(fb, useFb)
		remaining = remaining.Sub(useFb)
	}

	return alloc.Add(Unpaid, remaining), nil
}

func (in AllocationInput) validate() error {
	if in.ChargeableDays.IsNegative() {
		return generic.NewValidation("chargeable_days", "must not be negative, got %s", in.ChargeableDays)
	}
	if !in.Type.Valid() {
		return generic.NewValidation("type", "unknown leave type %q", in.Type)
	}
	if in.FallbackType != "" && !in.FallbackType.Valid() {
		return generic.NewValidation("fallback_type", "unknown fallback type %q", in.FallbackType)
	}
	return nil
}
