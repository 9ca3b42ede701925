/*
Package leave implements the leave ledger engine.

PURPOSE:
  Turns a requested date range into a chargeable day count and funds that
  count from an employee's capped, multi-bucket leave balance.

PIPELINE (leaf first):
  ┌──────────────┐   ┌──────────────┐   ┌─────────┐   ┌────────────┐   ┌──────────────┐
  │ Calendar     │──▶│ Chargeable   │──▶│ Accrual │──▶│ Allocation │──▶│ BalanceLedger│
  │ (calendar.go)│   │(chargeable.go│   │  gate   │   │  engine    │   │  (ledger.go) │
  └──────────────┘   └──────────────┘   └─────────┘   └────────────┘   └──────────────┘

  Calendar, Chargeable and Allocation are pure functions. BalanceLedger is
  the only component that writes, and it writes the employee ledger as a
  single compare-and-swap document update.

BUCKETS:
  paid, casual, sick  - capped per type and funded from the shared pool
  unpaid              - uncapped, never touches the pool, the final backstop

LIFECYCLE:
  PENDING ──approve──▶ APPROVED   (allocations snapshot written once)
     │
     └────reject────▶ REJECTED   (no ledger mutation)

SEE ALSO:
  - service.go: Approve / Reject / CreateRequest / Preview
  - backfill.go: batch import with strict fallback rules
*/
package leave

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LEAVE TYPES & BUCKETS
// =============================================================================

type LeaveType string

const (
	Paid   LeaveType = "paid"
	Casual LeaveType = "casual"
	Sick   LeaveType = "sick"
	Unpaid LeaveType = "unpaid"
)

// AllTypes lists the four buckets in allocation-report order.
var AllTypes = []LeaveType{Paid, Casual, Sick, Unpaid}

// ParseLeaveType accepts any casing and surrounding whitespace.
func ParseLeaveType(s string) (LeaveType, error) {
	t := LeaveType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", generic.NewValidation("type", "unknown leave type %q", s)
	}
	return t, nil
}

// ParseFallbackType is ParseLeaveType that allows the empty string.
func ParseFallbackType(s string) (LeaveType, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := ParseLeaveType(s)
	if err != nil {
		return "", generic.NewValidation("fallback_type", "unknown fallback type %q", s)
	}
	return t, nil
}

func (t LeaveType) Valid() bool {
	switch t {
	case Paid, Casual, Sick, Unpaid:
		return true
	}
	return false
}

// Pooled reports whether the type draws from totalLeaveAvailable.
func (t LeaveType) Pooled() bool { return t == Paid || t == Casual || t == Sick }

// Buckets holds one quantity per leave type. Used for usage counters and for
// allocation snapshots.
type Buckets struct {
	Paid   decimal.Decimal `json:"paid"`
	Casual decimal.Decimal `json:"casual"`
	Sick   decimal.Decimal `json:"sick"`
	Unpaid decimal.Decimal `json:"unpaid"`
}

func (b Buckets) Get(t LeaveType) decimal.Decimal {
	switch t {
	case Paid:
		return b.Paid
	case Casual:
		return b.Casual
	case Sick:
		return b.Sick
	case Unpaid:
		return b.Unpaid
	}
	return decimal.Zero
}

// With returns a copy of b with bucket t set to v.
func (b Buckets) With(t LeaveType, v decimal.Decimal) Buckets {
	switch t {
	case Paid:
		b.Paid = v
	case Casual:
		b.Casual = v
	case Sick:
		b.Sick = v
	case Unpaid:
		b.Unpaid = v
	}
	return b
}

// Add returns a copy of b with d added to bucket t.
func (b Buckets) Add(t LeaveType, d decimal.Decimal) Buckets {
	return b.With(t, b.Get(t).Add(d))
}

// Plus adds two bucket sets element-wise.
func (b Buckets) Plus(o Buckets) Buckets {
	return Buckets{
		Paid:   b.Paid.Add(o.Paid),
		Casual: b.Casual.Add(o.Casual),
		Sick:   b.Sick.Add(o.Sick),
		Unpaid: b.Unpaid.Add(o.Unpaid),
	}
}

// Pooled is paid + casual + sick.
func (b Buckets) Pooled() decimal.Decimal { return b.Paid.Add(b.Casual).Add(b.Sick) }

// Total is the sum of all four buckets.
func (b Buckets) Total() decimal.Decimal { return b.Pooled().Add(b.Unpaid) }

func (b Buckets) Equal(o Buckets) bool {
	return b.Paid.Equal(o.Paid) && b.Casual.Equal(o.Casual) &&
		b.Sick.Equal(o.Sick) && b.Unpaid.Equal(o.Unpaid)
}

// =============================================================================
// POLICY & CALENDAR
// =============================================================================

// TypeCaps is the maximum cumulative usage per capped type. Unpaid has no cap.
type TypeCaps struct {
	Paid   decimal.Decimal `json:"paid"`
	Casual decimal.Decimal `json:"casual"`
	Sick   decimal.Decimal `json:"sick"`
}

// Cap returns the cap for t; ok is false for unpaid.
func (c TypeCaps) Cap(t LeaveType) (decimal.Decimal, bool) {
	switch t {
	case Paid:
		return c.Paid, true
	case Casual:
		return c.Casual, true
	case Sick:
		return c.Sick, true
	}
	return decimal.Zero, false
}

// SandwichPolicy charges excluded days inside a long enough leave span.
type SandwichPolicy struct {
	Enabled bool `json:"enabled"`
	MinDays int  `json:"min_days"`
}

// LeavePolicy is configured per company.
type LeavePolicy struct {
	TypeCaps TypeCaps       `json:"type_caps"`
	Sandwich SandwichPolicy `json:"sandwich"`

	// MonthlyAccrual is credited to the pool once per accrued month.
	MonthlyAccrual decimal.Decimal `json:"monthly_accrual"`
}

// Company is the tenant. Bank holidays change rarely; per-day overrides live
// in their own collection.
type Company struct {
	ID           string
	Name         string
	Policy       LeavePolicy
	BankHolidays []generic.Date
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// EMPLOYEE LEDGER
// =============================================================================

// EmployeeLedger is the persisted balance document of one employee.
type EmployeeLedger struct {
	// TotalLeaveAvailable is the shared pool funding paid/casual/sick.
	// It may go negative only through data imported from outside the engine.
	TotalLeaveAvailable decimal.Decimal `json:"total_leave_available"`

	// Usage is cumulative and never decreases.
	Usage Buckets `json:"leave_usage"`

	// Balances is derived (cap - usage, clamped at 0). Display only.
	Balances Buckets `json:"leave_balances"`

	LastAccruedYearMonth generic.YearMonth `json:"last_accrued_year_month,omitempty"`

	// Version is bumped on every write and guards compare-and-swap updates.
	Version int64 `json:"version"`
}

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

type Employee struct {
	ID        string
	CompanyID string
	Code      string // external employee number used by imports
	Email     string
	Name      string

	// ApproverID is the assigned approver for this employee's requests.
	ApproverID string

	Ledger    EmployeeLedger
	CreatedAt time.Time
}

// Actor is whoever performs an operation. CompanyID is the tenant the actor
// belongs to; admin rights never reach beyond it.
type Actor struct {
	ID        string
	Role      Role
	CompanyID string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// MemberOf reports whether the actor belongs to companyID.
func (a Actor) MemberOf(companyID string) bool {
	return companyID != "" && a.CompanyID == companyID
}

// AdminOf reports whether the actor administers companyID.
func (a Actor) AdminOf(companyID string) bool { return a.IsAdmin() && a.MemberOf(companyID) }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

func (s RequestStatus) Terminal() bool { return s == StatusApproved || s == StatusRejected }

type RequestSource string

const (
	SourceInteractive RequestSource = "interactive"
	SourceBackfill    RequestSource = "backfill"
)

type LeaveRequest struct {
	ID           string
	CompanyID    string
	EmployeeID   string
	ApproverID   string
	StartDate    generic.Date
	EndDate      generic.Date
	Type         LeaveType
	FallbackType LeaveType // empty when none was supplied
	Reason       string
	Source       RequestSource
	Status       RequestStatus

	// Written once, at approval. The audit record of how the request was funded.
	Allocations    Buckets
	ChargeableDays decimal.Decimal

	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}
