package mongo

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// Quantities are stored as decimal strings so no float rounding ever
// reaches the ledger.

// ==================== Company models ====================

type companyModel struct {
	ID           string      `bson:"_id"`
	Name         string      `bson:"name"`
	Policy       policyModel `bson:"policy"`
	BankHolidays []string    `bson:"bank_holidays"`
	CreatedAt    time.Time   `bson:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at"`
}

type policyModel struct {
	CapPaid         string `bson:"cap_paid"`
	CapCasual       string `bson:"cap_casual"`
	CapSick         string `bson:"cap_sick"`
	SandwichEnabled bool   `bson:"sandwich_enabled"`
	SandwichMinDays int    `bson:"sandwich_min_days"`
	MonthlyAccrual  string `bson:"monthly_accrual"`
}

func toCompanyModel(c leave.Company) companyModel {
	holidays := make([]string, len(c.BankHolidays))
	for i, d := range c.BankHolidays {
		holidays[i] = d.String()
	}
	p := c.Policy
	return companyModel{
		ID:   c.ID,
		Name: c.Name,
		Policy: policyModel{
			CapPaid:         p.TypeCaps.Paid.String(),
			CapCasual:       p.TypeCaps.Casual.String(),
			CapSick:         p.TypeCaps.Sick.String(),
			SandwichEnabled: p.Sandwich.Enabled,
			SandwichMinDays: p.Sandwich.MinDays,
			MonthlyAccrual:  p.MonthlyAccrual.String(),
		},
		BankHolidays: holidays,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func fromCompanyModel(m companyModel) (leave.Company, error) {
	var (
		c   = leave.Company{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
		dec decoder
	)
	c.Policy = leave.LeavePolicy{
		TypeCaps: leave.TypeCaps{
			Paid:   dec.decimal("policy.cap_paid", m.Policy.CapPaid),
			Casual: dec.decimal("policy.cap_casual", m.Policy.CapCasual),
			Sick:   dec.decimal("policy.cap_sick", m.Policy.CapSick),
		},
		Sandwich:       leave.SandwichPolicy{Enabled: m.Policy.SandwichEnabled, MinDays: m.Policy.SandwichMinDays},
		MonthlyAccrual: dec.decimal("policy.monthly_accrual", m.Policy.MonthlyAccrual),
	}
	for _, s := range m.BankHolidays {
		c.BankHolidays = append(c.BankHolidays, dec.date("bank_holidays", s))
	}
	if dec.err != nil {
		return leave.Company{}, fmt.Errorf("decode company %s: %w", m.ID, dec.err)
	}
	return c, nil
}

// ==================== Override models ====================

type overrideModel struct {
	ID        string    `bson:"_id"`
	CompanyID string    `bson:"company_id"`
	Date      string    `bson:"date"`
	Kind      string    `bson:"kind"`
	Note      string    `bson:"note,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func fromOverrideModel(m overrideModel) (leave.DayOverride, error) {
	d, err := generic.ParseDate(m.Date)
	if err != nil {
		return leave.DayOverride{}, fmt.Errorf("decode override %s: %w", m.ID, err)
	}
	return leave.DayOverride{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Date:      d,
		Kind:      leave.OverrideKind(m.Kind),
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}, nil
}

// ==================== Employee models ====================

type bucketsModel struct {
	Paid   string `bson:"paid"`
	Casual string `bson:"casual"`
	Sick   string `bson:"sick"`
	Unpaid string `bson:"unpaid"`
}

type ledgerModel struct {
	TotalLeaveAvailable  string       `bson:"total_leave_available"`
	Usage                bucketsModel `bson:"leave_usage"`
	Balances             bucketsModel `bson:"leave_balances"`
	LastAccruedYearMonth string       `bson:"last_accrued_year_month,omitempty"`
}

// employeeModel keeps the ledger as one embedded document so a ledger write
// is a single-document update. CodeKey and EmailKey are lowercased lookups.
type employeeModel struct {
	ID         string      `bson:"_id"`
	CompanyID  string      `bson:"company_id"`
	Code       string      `bson:"code,omitempty"`
	CodeKey    string      `bson:"code_key,omitempty"`
	Email      string      `bson:"email,omitempty"`
	EmailKey   string      `bson:"email_key,omitempty"`
	Name       string      `bson:"name"`
	ApproverID string      `bson:"approver_id,omitempty"`
	Ledger     ledgerModel `bson:"ledger"`
	Version    int64       `bson:"version"`
	CreatedAt  time.Time   `bson:"created_at"`
}

func toBucketsModel(b leave.Buckets) bucketsModel {
	return bucketsModel{
		Paid:   b.Paid.String(),
		Casual: b.Casual.String(),
		Sick:   b.Sick.String(),
		Unpaid: b.Unpaid.String(),
	}
}

func toLedgerModel(l leave.EmployeeLedger) ledgerModel {
	return ledgerModel{
		TotalLeaveAvailable:  l.TotalLeaveAvailable.String(),
		Usage:                toBucketsModel(l.Usage),
		Balances:             toBucketsModel(l.Balances),
		LastAccruedYearMonth: string(l.LastAccruedYearMonth),
	}
}

func toEmployeeModel(e leave.Employee) employeeModel {
	return employeeModel{
		ID:         e.ID,
		CompanyID:  e.CompanyID,
		Code:       e.Code,
		CodeKey:    strings.ToLower(e.Code),
		Email:      e.Email,
		EmailKey:   strings.ToLower(e.Email),
		Name:       e.Name,
		ApproverID: e.ApproverID,
		Ledger:     toLedgerModel(e.Ledger),
		Version:    e.Ledger.Version,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

func fromEmployeeModel(m employeeModel) (leave.Employee, error) {
	var dec decoder
	e := leave.Employee{
		ID:         m.ID,
		CompanyID:  m.CompanyID,
		Code:       m.Code,
		Email:      m.Email,
		Name:       m.Name,
		ApproverID: m.ApproverID,
		CreatedAt:  m.CreatedAt,
		Ledger: leave.EmployeeLedger{
			TotalLeaveAvailable:  dec.decimal("ledger.total_leave_available", m.Ledger.TotalLeaveAvailable),
			Usage:                dec.buckets("ledger.leave_usage", m.Ledger.Usage),
			Balances:             dec.buckets("ledger.leave_balances", m.Ledger.Balances),
			LastAccruedYearMonth: generic.YearMonth(m.Ledger.LastAccruedYearMonth),
			Version:              m.Version,
		},
	}
	if dec.err != nil {
		return leave.Employee{}, fmt.Errorf("decode employee %s: %w", m.ID, dec.err)
	}
	return e, nil
}

// ==================== Request models ====================

type requestModel struct {
	ID              string       `bson:"_id"`
	CompanyID       string       `bson:"company_id"`
	EmployeeID      string       `bson:"employee_id"`
	ApproverID      string       `bson:"approver_id,omitempty"`
	StartDate       string       `bson:"start_date"`
	EndDate         string       `bson:"end_date"`
	Type            string       `bson:"type"`
	FallbackType    string       `bson:"fallback_type,omitempty"`
	Reason          string       `bson:"reason,omitempty"`
	Source          string       `bson:"source"`
	Status          string       `bson:"status"`
	Allocations     bucketsModel `bson:"allocations"`
	ChargeableDays  string       `bson:"chargeable_days"`
	DecidedBy       string       `bson:"decided_by,omitempty"`
	DecidedAt       *time.Time   `bson:"decided_at,omitempty"`
	RejectionReason string       `bson:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `bson:"created_at"`
	UpdatedAt       time.Time    `bson:"updated_at"`
}

func toRequestModel(r leave.LeaveRequest) requestModel {
	return requestModel{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		EmployeeID:      r.EmployeeID,
		ApproverID:      r.ApproverID,
		StartDate:       r.StartDate.String(),
		EndDate:         r.EndDate.String(),
		Type:            string(r.Type),
		FallbackType:    string(r.FallbackType),
		Reason:          r.Reason,
		Source:          string(r.Source),
		Status:          string(r.Status),
		Allocations:     toBucketsModel(r.Allocations),
		ChargeableDays:  r.ChargeableDays.String(),
		DecidedBy:       r.DecidedBy,
		DecidedAt:       r.DecidedAt,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func fromRequestModel(m requestModel) (leave.LeaveRequest, error) {
	var dec decoder
	r := leave.LeaveRequest{
		ID:              m.ID,
		CompanyID:       m.CompanyID,
		EmployeeID:      m.EmployeeID,
		ApproverID:      m.ApproverID,
		StartDate:       dec.date("start_date", m.StartDate),
		EndDate:         dec.date("end_date", m.EndDate),
		Type:            leave.LeaveType(m.Type),
		FallbackType:    leave.LeaveType(m.FallbackType),
		Reason:          m.Reason,
		Source:          leave.RequestSource(m.Source),
		Status:          leave.RequestStatus(m.Status),
		Allocations:     dec.buckets("allocations", m.Allocations),
		ChargeableDays:  dec.decimal("chargeable_days", m.ChargeableDays),
		DecidedBy:       m.DecidedBy,
		DecidedAt:       m.DecidedAt,
		RejectionReason: m.RejectionReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if dec.err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("decode leave request %s: %w", m.ID, dec.err)
	}
	return r, nil
}

// ==================== Decoding ====================

// decoder keeps the first parse error so conversions read top to bottom.
type decoder struct {
	err error
}

func (d *decoder) decimal(field, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func (d *decoder) date(field, s string) generic.Date {
	v, err := generic.ParseDate(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func (d *decoder) buckets(field string, m bucketsModel) leave.Buckets {
	return leave.Buckets{
		Paid:   d.decimal(field+".paid", m.Paid),
		Casual: d.decimal(field+".casual", m.Casual),
		Sick:   d.decimal(field+".sick", m.Sick),
		Unpaid: d.decimal(field+".unpaid", m.Unpaid),
	}
}
