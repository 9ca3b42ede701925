/*
store.go - Persistence interface for the leave engine

PURPOSE:
  Defines the boundary between the engine and the database. Implementations
  live under store/: memory (tests), sqlstore (SQLite / PostgreSQL) and
  mongo (document store).

LEDGER WRITES:
  UpdateLedger is the only way to change an employee's balance fields and it
  is a compare-and-swap on EmployeeLedger.Version:

    UPDATE employee SET <ledger> , version = version + 1
     WHERE id = ? AND version = ?

  - zero rows and the employee is gone  → NotFoundError
  - zero rows and the employee exists   → ErrConcurrentModification

  Two concurrent approvals for the same employee therefore cannot both
  spend the same pool snapshot; the loser re-reads and re-allocates.

REQUEST DECISIONS:
  DecideRequest only succeeds while the stored status is PENDING. It returns
  StateConflictError otherwise, which makes APPROVED/REJECTED terminal even
  under races.

ATOMICITY:
  WithTx runs fn inside one database transaction. Approve writes the ledger
  and the request status inside the same WithTx, so a failure leaves both
  documents in their pre-operation state.
*/
package leave

import (
	"context"

	"github.com/warp/leave-ledger/generic"
)

// Store is implemented by every backend under store/.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id string) (Company, error)
	SaveCompany(ctx context.Context, c Company) error

	// Day overrides, unique per (company, date).
	ListDayOverrides(ctx context.Context, companyID string, p generic.Period) ([]DayOverride, error)
	UpsertDayOverride(ctx context.Context, o DayOverride) error
	DeleteDayOverride(ctx context.Context, companyID string, date generic.Date) error

	// Employees
	GetEmployee(ctx context.Context, id string) (Employee, error)
	// FindEmployee resolves an import reference: employee ID, code or email.
	FindEmployee(ctx context.Context, companyID, ref string) (Employee, error)
	// ListEmployees returns every employee of companyID, or all when empty.
	ListEmployees(ctx context.Context, companyID string) ([]Employee, error)
	// SaveEmployee creates or replaces profile fields. Ledger fields are only
	// written on create.
	SaveEmployee(ctx context.Context, e Employee) error
	UpdateLedger(ctx context.Context, employeeID string, expectedVersion int64, next EmployeeLedger) error

	// Requests
	GetRequest(ctx context.Context, id string) (LeaveRequest, error)
	CreateRequest(ctx context.Context, r LeaveRequest) error
	DecideRequest(ctx context.Context, r LeaveRequest) error

	// WithTx runs fn atomically. tx must be used for every call inside fn.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
