/*
Package factory loads company definitions from YAML or JSON files.

PURPOSE:
  Lets HR keep a company's leave policy, bank holidays, day overrides and
  opening employee ledgers in a version-controlled file. The factory turns
  that file into leave.Company, leave.DayOverride and
  leave.RegisterEmployeeInput values; Import pushes them through the
  service so every admin check and validation still runs.

FILE SCHEMA (YAML shown, JSON uses the same keys):
  id: acme
  name: Acme Ltd
  policy:
    type_caps: {paid: 12, casual: 6, sick: 6}
    sandwich: {enabled: true, min_days: 2}
    monthly_accrual: 1.5
  bank_holidays: [2025-01-01, 2025-12-25]
  overrides:
    - {date: 2025-05-03, kind: WORKING, note: make-up day}
    - {date: 2025-05-07, kind: HALF_DAY}
  employees:
    - id: alice
      code: EMP-001
      email: alice@acme.test
      name: Alice
      approver_id: mgr-1
      opening_balance: 8
      usage: {paid: 3}

  Quantities are read as text and parsed as decimals, so 1.5 never passes
  through a float.

SEE ALSO:
  - leave/service.go: SaveCompany, UpsertDayOverride, RegisterEmployee
  - cmd/leavectl: import-company and chargeable commands
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

// CompanyFile is the on-disk representation of a company.
type CompanyFile struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name" json:"name"`
	Policy       PolicyFile     `yaml:"policy" json:"policy"`
	BankHolidays []string       `yaml:"bank_holidays" json:"bank_holidays"`
	Overrides    []OverrideFile `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Employees    []EmployeeFile `yaml:"employees,omitempty" json:"employees,omitempty"`
}

type PolicyFile struct {
	TypeCaps       CapsFile     `yaml:"type_caps" json:"type_caps"`
	Sandwich       SandwichFile `yaml:"sandwich" json:"sandwich"`
	MonthlyAccrual Quantity     `yaml:"monthly_accrual" json:"monthly_accrual"`
}

type CapsFile struct {
	Paid   Quantity `yaml:"paid" json:"paid"`
	Casual Quantity `yaml:"casual" json:"casual"`
	Sick   Quantity `yaml:"sick" json:"sick"`
}

type SandwichFile struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	MinDays int  `yaml:"min_days" json:"min_days"`
}

type OverrideFile struct {
	Date string `yaml:"date" json:"date"`
	Kind string `yaml:"kind" json:"kind"`
	Note string `yaml:"note,omitempty" json:"note,omitempty"`
}

type EmployeeFile struct {
	ID             string              `yaml:"id" json:"id"`
	Code           string              `yaml:"code,omitempty" json:"code,omitempty"`
	Email          string              `yaml:"email,omitempty" json:"email,omitempty"`
	Name           string              `yaml:"name" json:"name"`
	ApproverID     string              `yaml:"approver_id,omitempty" json:"approver_id,omitempty"`
	OpeningBalance Quantity            `yaml:"opening_balance" json:"opening_balance"`
	Usage          map[string]Quantity `yaml:"usage,omitempty" json:"usage,omitempty"`
}

// Quantity is a day amount kept as its literal text. YAML and JSON numbers
// and quoted strings are both accepted.
type Quantity string

func (q *Quantity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: day quantity must be a scalar", n.Line)
	}
	*q = Quantity(n.Value)
	return nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	*q = Quantity(strings.Trim(string(b), `"`))
	return nil
}

func (q Quantity) decimal(field string) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(q))
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	d, err := generic.ParseDays(s)
	if err != nil {
		return decimal.Zero, generic.NewValidation(field, "%v", err)
	}
	return d, nil
}

// =============================================================================
// LOADING
// =============================================================================

// CompanySetup is everything a company file defines, ready for the service.
type CompanySetup struct {
	Company   leave.Company
	Overrides []leave.DayOverride
	Employees []leave.RegisterEmployeeInput
}

// Calendar builds the resolver the file describes, without any database.
func (cs CompanySetup) Calendar() *leave.Calendar {
	return leave.CalendarFor(cs.Company, cs.Overrides)
}

// LoadCompanyFile reads path as JSON when it ends in .json and as YAML
// otherwise.
func LoadCompanyFile(path string) (CompanySetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompanySetup{}, fmt.Errorf("failed to read company file %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseCompanyJSON(data)
	}
	return ParseCompanyYAML(data)
}

func ParseCompanyYAML(data []byte) (CompanySetup, error) {
	var cf CompanyFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return CompanySetup{}, fmt.Errorf("failed to parse company YAML: %w", err)
	}
	return cf.Build()
}

func ParseCompanyJSON(data []byte) (CompanySetup, error) {
	var cf CompanyFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return CompanySetup{}, fmt.Errorf("failed to parse company JSON: %w", err)
	}
	return cf.Build()
}

// Build converts and validates the file contents.
func (cf CompanyFile) Build() (CompanySetup, error) {
	var (
		setup CompanySetup
		err   error
	)
	setup.Company, err = cf.company()
	if err != nil {
		return CompanySetup{}, err
	}
	if err := leave.ValidateCompany(setup.Company); err != nil {
		return CompanySetup{}, err
	}

	for i, of := range cf.Overrides {
		o, err := parseOverride(cf.ID, of)
		if err != nil {
			return CompanySetup{}, fmt.Errorf("overrides[%d]: %w", i, err)
		}
		setup.Overrides = append(setup.Overrides, o)
	}

	for i, ef := range cf.Employees {
		in, err := parseEmployee(cf.ID, ef)
		if err != nil {
			return CompanySetup{}, fmt.Errorf("employees[%d]: %w", i, err)
		}
		setup.Employees = append(setup.Employees, in)
	}
	return setup, nil
}

func (cf CompanyFile) company() (leave.Company, error) {
	c := leave.Company{ID: strings.TrimSpace(cf.ID), Name: cf.Name}

	quantities := []struct {
		field string
		q     Quantity
		dst   *decimal.Decimal
	}{
		{"policy.type_caps.paid", cf.Policy.TypeCaps.Paid, &c.Policy.TypeCaps.Paid},
		{"policy.type_caps.casual", cf.Policy.TypeCaps.Casual, &c.Policy.TypeCaps.Casual},
		{"policy.type_caps.sick", cf.Policy.TypeCaps.Sick, &c.Policy.TypeCaps.Sick},
		{"policy.monthly_accrual", cf.Policy.MonthlyAccrual, &c.Policy.MonthlyAccrual},
	}
	for _, q := range quantities {
		d, err := q.q.decimal(q.field)
		if err != nil {
			return leave.Company{}, err
		}
		*q.dst = d
	}
	c.Policy.Sandwich = leave.SandwichPolicy{Enabled: cf.Policy.Sandwich.Enabled, MinDays: cf.Policy.Sandwich.MinDays}

	for i, s := range cf.BankHolidays {
		d, err := generic.ParseDate(s)
		if err != nil {
			return leave.Company{}, generic.NewValidation(fmt.Sprintf("bank_holidays[%d]", i), "%v", err)
		}
		c.BankHolidays = append(c.BankHolidays, d)
	}
	return c, nil
}

func parseOverride(companyID string, of OverrideFile) (leave.DayOverride, error) {
	d, err := generic.ParseDate(of.Date)
	if err != nil {
		return leave.DayOverride{}, generic.NewValidation("date", "%v", err)
	}
	kind, err := leave.ParseOverrideKind(of.Kind)
	if err != nil {
		return leave.DayOverride{}, err
	}
	return leave.DayOverride{CompanyID: companyID, Date: d, Kind: kind, Note: of.Note}, nil
}

func parseEmployee(companyID string, ef EmployeeFile) (leave.RegisterEmployeeInput, error) {
	opening, err := ef.OpeningBalance.decimal("opening_balance")
	if err != nil {
		return leave.RegisterEmployeeInput{}, err
	}
	var usage leave.Buckets
	for name, q := range ef.Usage {
		t, err := leave.ParseLeaveType(name)
		if err != nil {
			return leave.RegisterEmployeeInput{}, generic.NewValidation("usage", "unknown leave type %q", name)
		}
		d, err := q.decimal("usage." + name)
		if err != nil {
			return leave.RegisterEmployeeInput{}, err
		}
		usage = usage.With(t, d)
	}
	return leave.RegisterEmployeeInput{
		ID:             ef.ID,
		CompanyID:      companyID,
		Code:           ef.Code,
		Email:          ef.Email,
		Name:           ef.Name,
		ApproverID:     ef.ApproverID,
		OpeningBalance: opening,
		Usage:          usage,
	}, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// CompanyAdmin is the slice of leave.Service that Import drives.
type CompanyAdmin interface {
	SaveCompany(ctx context.Context, c leave.Company, actor leave.Actor) (leave.Company, error)
	UpsertDayOverride(ctx context.Context, o leave.DayOverride, actor leave.Actor) (leave.DayOverride, error)
	RegisterEmployee(ctx context.Context, in leave.RegisterEmployeeInput, actor leave.Actor) (leave.Employee, error)
}

// ImportReport counts what Import wrote.
type ImportReport struct {
	CompanyID string
	Overrides int
	Employees int
}

// Import saves the company, then its overrides, then its employees. It stops
// at the first error; everything written before it stays.
func Import(ctx context.Context, admin CompanyAdmin, setup CompanySetup, actor leave.Actor) (ImportReport, error) {
	rep := ImportReport{CompanyID: setup.Company.ID}
	if _, err := admin.SaveCompany(ctx, setup.Company, actor); err != nil {
		return rep, fmt.Errorf("import company %s: %w", setup.Company.ID, err)
	}
	for _, o := range setup.Overrides {
		if _, err := admin.UpsertDayOverride(ctx, o, actor); err != nil {
			return rep, fmt.Errorf("import override %s: %w", o.Date, err)
		}
		rep.Overrides++
	}
	for _, in := range setup.Employees {
		if _, err := admin.RegisterEmployee(ctx, in, actor); err != nil {
			return rep, fmt.Errorf("import employee %s: %w", in.Name, err)
		}
		rep.Employees++
	}
	return rep, nil
}
