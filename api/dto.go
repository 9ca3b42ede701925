/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types without
  json tags (Company, LeaveRequest, results) get a DTO here; types that
  already carry tags (LeavePolicy, Buckets, EmployeeLedger) are reused.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

QUANTITIES:
  Day amounts are decimals and serialize as strings ("4.5"). Request bodies
  accept numbers or strings.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// COMPANY & CALENDAR
// =============================================================================

type CompanyDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Policy       leave.LeavePolicy `json:"policy"`
	BankHolidays []generic.Date    `json:"bank_holidays"`
	CreatedAt    time.Time         `json:"created_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
}

func toCompanyDTO(c leave.Company) CompanyDTO {
	holidays := c.BankHolidays
	if holidays == nil {
		holidays = []generic.Date{}
	}
	return CompanyDTO{
		ID:           c.ID,
		Name:         c.Name,
		Policy:       c.Policy,
		BankHolidays: holidays,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// SaveCompanyRequest is the PUT body; the ID comes from the path.
type SaveCompanyRequest struct {
	Name         string            `json:"name"`
	Policy       leave.LeavePolicy `json:"policy"`
	BankHolidays []generic.Date    `json:"bank_holidays"`
}

type OverrideDTO struct {
	ID        string       `json:"id"`
	CompanyID string       `json:"company_id"`
	Date      generic.Date `json:"date"`
	Kind      string       `json:"kind"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func toOverrideDTO(o leave.DayOverride) OverrideDTO {
	return OverrideDTO{
		ID:        o.ID,
		CompanyID: o.CompanyID,
		Date:      o.Date,
		Kind:      string(o.Kind),
		Note:      o.Note,
		CreatedAt: o.CreatedAt,
	}
}

type PutOverrideRequest struct {
	Kind string `json:"kind"`
	Note string `json:"note"`
}

type ChargeableDTO struct {
	Days            decimal.Decimal   `json:"days"`
	RangeLength     int               `json:"range_length"`
	SandwichApplied bool              `json:"sandwich_applied"`
	Breakdown       []leave.DayCharge `json:"breakdown"`
}

func toChargeableDTO(c leave.Chargeable) ChargeableDTO {
	return ChargeableDTO{
		Days:            c.Days,
		RangeLength:     c.RangeLength,
		SandwichApplied: c.SandwichApplied,
		Breakdown:       c.Breakdown,
	}
}

// =============================================================================
// EMPLOYEES & LEDGER
// =============================================================================

type EmployeeDTO struct {
	ID         string               `json:"id"`
	CompanyID  string               `json:"company_id"`
	Code       string               `json:"code,omitempty"`
	Email      string               `json:"email,omitempty"`
	Name       string               `json:"name"`
	ApproverID string               `json:"approver_id,omitempty"`
	Ledger     leave.EmployeeLedger `json:"ledger"`
	CreatedAt  time.Time            `json:"created_at"`
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         e.ID,
		CompanyID:  e.CompanyID,
		Code:       e.Code,
		Email:      e.Email,
		Name:       e.Name,
		ApproverID: e.ApproverID,
		Ledger:     e.Ledger,
		CreatedAt:  e.CreatedAt,
	}
}

// LedgerDTO is the employee balance read model.
type LedgerDTO struct {
	EmployeeID string `json:"employee_id"`
	leave.EmployeeLedger
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type RequestDTO struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	EmployeeID      string          `json:"employee_id"`
	ApproverID      string          `json:"approver_id,omitempty"`
	StartDate       generic.Date    `json:"start_date"`
	EndDate         generic.Date    `json:"end_date"`
	Type            string          `json:"type"`
	FallbackType    string          `json:"fallback_type,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Source          string          `json:"source"`
	Status          string          `json:"status"`
	Allocations     *leave.Buckets  `json:"allocations,omitempty"`
	ChargeableDays  decimal.Decimal `json:"chargeable_days"`
	DecidedBy       string          `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		EmployeeID:      r.EmployeeID,
		ApproverID:      r.ApproverID,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Type:            string(r.Type),
		FallbackType:    string(r.FallbackType),
		Reason:          r.Reason,
		Source:          string(r.Source),
		Status:          string(r.Status),
		ChargeableDays:  r.ChargeableDays,
		DecidedBy:       r.DecidedBy,
		DecidedAt:       r.DecidedAt,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
	}
	if r.Status == leave.StatusApproved {
		alloc := r.Allocations
		dto.Allocations = &alloc
	}
	return dto
}

// ApproveResponse carries the decided request and the ledger it produced.
type ApproveResponse struct {
	Request RequestDTO `json:"request"`
	Ledger  LedgerDTO  `json:"ledger"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type PreviewDTO struct {
	Chargeable  ChargeableDTO        `json:"chargeable"`
	Allocations leave.Buckets        `json:"allocations"`
	Before      leave.EmployeeLedger `json:"before"`
	After       leave.EmployeeLedger `json:"after"`
}

// =============================================================================
// BATCH OPERATIONS
// =============================================================================

type BackfillRequest struct {
	Rows []leave.BackfillRow `json:"rows"`
}

type BackfillRowDTO struct {
	Index          int            `json:"index"`
	EmployeeRef    string         `json:"employee_ref"`
	RequestID      string         `json:"request_id,omitempty"`
	Status         string         `json:"status,omitempty"`
	ChargeableDays string         `json:"chargeable_days,omitempty"`
	Allocations    *leave.Buckets `json:"allocations,omitempty"`
	Error          string         `json:"error,omitempty"`
}

type BackfillResultDTO struct {
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Rows      []BackfillRowDTO `json:"rows"`
	Errors    []string         `json:"errors"`
}

func toBackfillResultDTO(res leave.BackfillResult) BackfillResultDTO {
	dto := BackfillResultDTO{
		Processed: res.Processed,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Rows:      make([]BackfillRowDTO, 0, len(res.Rows)),
		Errors:    res.Errors,
	}
	if dto.Errors == nil {
		dto.Errors = []string{}
	}
	for _, row := range res.Rows {
		rd := BackfillRowDTO{
			Index:          row.Index,
			EmployeeRef:    row.EmployeeRef,
			RequestID:      row.RequestID,
			Status:         string(row.Status),
			ChargeableDays: row.ChargeableDays,
		}
		if row.Status == leave.StatusApproved {
			alloc := row.Allocations
			rd.Allocations = &alloc
		}
		if row.Err != nil {
			rd.Error = row.Err.Error()
		}
		dto.Rows = append(dto.Rows, rd)
	}
	return dto
}

type AccrualReportDTO struct {
	Month    string `json:"month"`
	Checked  int    `json:"checked"`
	Credited int    `json:"credited"`
	Failed   int    `json:"failed"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}
