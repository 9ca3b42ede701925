/*
service.go - Leave request lifecycle

PURPOSE:
  Orchestrates the pure engine (calendar, chargeable, allocation) and the
  writing side (accrual gate, balance ledger) around one leave request.

APPROVAL FLOW:
  ┌──────────────────────────────────────────────────────────────────────┐
  │ read request ─▶ PENDING? ─▶ approver/admin? ─▶ lock employee         │
  │                                                   │                  │
  │   ┌───────────────── WithTx (retried on CAS loss) ▼ ───────────────┐ │
  │   │ company + overrides ─▶ chargeable days                         │ │
  │   │ employee ─▶ accrual gate (month of start date) ─▶ allocate     │ │
  │   │ ledger.Apply (CAS)  ─▶ DecideRequest (only while PENDING)      │ │
  │   └────────────────────────────────────────────────────────────────┘ │
  │                                                   │                  │
  │                                        publish leave.approved        │
  └──────────────────────────────────────────────────────────────────────┘

  The request status and the ledger are written in the same transaction:
  either both change or neither does.

CONCURRENCY:
  Two approvals for the same employee are serialized by the Locker. Without
  a shared lock (several servers, lock.Nop) the ledger CAS still rejects the
  loser, which re-reads and re-allocates up to maxRetries times.

SEE ALSO:
  - backfill.go: batch import that reuses approveInTx with strict fallback
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/events"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/lock"
)

const defaultMaxRetries = 3

// DefaultMaxRangeDays bounds the calendar days one request or chargeable
// query may span.
const DefaultMaxRangeDays = 366

// Service is the entry point for every leave operation.
type Service struct {
	store        Store
	locker       lock.Locker
	publisher    events.Publisher
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
	maxRetries   int
	approvalMode FallbackMode
	maxRangeDays int
	validate     *validator.Validate
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option { return func(s *Service) { s.locker = l } }
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }
func WithMaxRetries(n int) Option { return func(s *Service) { s.maxRetries = n } }
func WithApprovalFallback(m FallbackMode) Option { return func(s *Service) { s.approvalMode = m } }
func WithMaxRangeDays(n int) Option { return func(s *Service) { s.maxRangeDays = n } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		locker:       lock.Nop{},
		publisher:    events.Nop{},
		logger:       zap.NewNop(),
		now:          time.Now,
		newID:        uuid.NewString,
		maxRetries:   defaultMaxRetries,
		approvalMode: FallbackToUnpaid,
		maxRangeDays: DefaultMaxRangeDays,
		validate:     newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	if s.maxRangeDays < 1 {
		s.maxRangeDays = DefaultMaxRangeDays
	}
	s.logger = s.logger.Named("leave")
	return s
}

// =============================================================================
// CREATE
// =============================================================================

// CreateRequestInput is what an employee submits.
type CreateRequestInput struct {
	EmployeeID   string       `json:"employee_id" validate:"required"`
	Type         string       `json:"type" validate:"required"`
	FallbackType string       `json:"fallback_type"`
	StartDate    generic.Date `json:"start_date"`
	EndDate      generic.Date `json:"end_date"`
	Reason       string       `json:"reason" validate:"max=500"`
}

// CreateRequest validates the input and stores a PENDING request. No
// balance is touched until approval.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput, actor Actor) (LeaveRequest, error) {
	if err := s.validateStruct(in); err != nil {
		return LeaveRequest{}, err
	}
	typ, fb, period, err := s.parseRequestFields(in.Type, in.FallbackType, in.StartDate, in.EndDate)
	if err != nil {
		return LeaveRequest{}, err
	}

	emp, err := s.store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !actor.AdminOf(emp.CompanyID) && !(actor.MemberOf(emp.CompanyID) && actor.ID == emp.ID) {
		return LeaveRequest{}, &generic.AuthorizationError{ActorID: actor.ID, Action: "create leave for", Resource: "employee " + emp.ID}
	}

	now := s.now().UTC()
	req := LeaveRequest{
		ID:           s.newID(),
		CompanyID:    emp.CompanyID,
		EmployeeID:   emp.ID,
		ApproverID:   emp.ApproverID,
		StartDate:    period.Start,
		EndDate:      period.End,
		Type:         typ,
		FallbackType: fb,
		Reason:       strings.TrimSpace(in.Reason),
		Source:       SourceInteractive,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return LeaveRequest{}, fmt.Errorf("create leave request: %w", err)
	}

	s.logger.Info("leave requested",
		zap.String("request_id", req.ID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("type", string(req.Type)),
		zap.Stringer("period", req.Period()),
	)
	s.publish(ctx, events.TypeLeaveRequested, req, nil)
	return req, nil
}

// parseRequestFields is the up-front validation shared by every entry point.
// It runs before any calendar or allocation work.
func (s *Service) parseRequestFields(typ, fallback string, start, end generic.Date) (LeaveType, LeaveType, generic.Period, error) {
	t, err := ParseLeaveType(typ)
	if err != nil {
		return "", "", generic.Period{}, err
	}
	fb, err := ParseFallbackType(fallback)
	if err != nil {
		return "", "", generic.Period{}, err
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return "", "", generic.Period{}, err
	}
	if err := s.checkSpan(p); err != nil {
		return "", "", generic.Period{}, err
	}
	return t, fb, p, nil
}

// checkSpan rejects periods longer than maxRangeDays. Every day of a period
// is resolved and kept in the breakdown.
func (s *Service) checkSpan(p generic.Period) error {
	if n := p.Len(); n > s.maxRangeDays {
		return generic.NewValidation("date_range", "range spans %d days, at most %d allowed", n, s.maxRangeDays)
	}
	return nil
}

// =============================================================================
// APPROVE
// =============================================================================

// Approve moves a PENDING request to APPROVED, funding it from the
// employee's ledger, and returns the ledger after the write.
//
// Errors:
//   - NotFoundError:       request, employee or company missing
//   - StateConflictError:  request is no longer PENDING
//   - AuthorizationError:  actor is neither the assigned approver nor an admin
//     of the request's company; checked before the PENDING guard
func (s *Service) Approve(ctx context.Context, requestID string, actor Actor) (EmployeeLedger, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return EmployeeLedger{}, err
	}
	if err := authorizeDecision(req, actor, "approve"); err != nil {
		return EmployeeLedger{}, err
	}
	if err := requirePending(req); err != nil {
		return EmployeeLedger{}, err
	}

	unlock, err := s.locker.Lock(ctx, lock.EmployeeKey(req.EmployeeID))
	if err != nil {
		return EmployeeLedger{}, fmt.Errorf("lock employee %s: %w", req.EmployeeID, err)
	}
	defer unlock()

	var (
		approved LeaveRequest
		ledger   EmployeeLedger
	)
	err = s.withRetry(ctx, func(ctx context.Context, tx Store) error {
		// Re-read inside the transaction: another approver may have won.
		cur, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		approved, ledger, err = s.approveInTx(ctx, tx, cur, actor, s.fallbackModeFor(cur))
		return err
	})
	if err != nil {
		s.logger.Warn("approve failed",
			zap.String("request_id", requestID),
			zap.String("actor_id", actor.ID),
			zap.Error(err),
		)
		return EmployeeLedger{}, err
	}

	s.logger.Info("leave approved",
		zap.String("request_id", approved.ID),
		zap.String("employee_id", approved.EmployeeID),
		zap.String("chargeable_days", approved.ChargeableDays.String()),
		zap.String("unpaid", approved.Allocations.Unpaid.String()),
	)
	s.publish(ctx, events.TypeLeaveApproved, approved, map[string]any{
		"allocations":           approved.Allocations,
		"total_leave_available": ledger.TotalLeaveAvailable,
	})
	return ledger, nil
}

// fallbackModeFor keeps imported requests strict even when they are approved
// later through the interactive path.
func (s *Service) fallbackModeFor(req LeaveRequest) FallbackMode {
	if req.Source == SourceBackfill {
		return FallbackRequired
	}
	return s.approvalMode
}

// approveInTx runs the whole pipeline for req against tx.
func (s *Service) approveInTx(ctx context.Context, tx Store, req LeaveRequest, actor Actor, mode FallbackMode) (LeaveRequest, EmployeeLedger, error) {
	if err := requirePending(req); err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}

	company, err := tx.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}
	charge, err := s.chargeable(ctx, tx, company, req.Period())
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}

	emp, err := tx.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}

	ledger := NewBalanceLedger(tx)
	cur, accrued, err := NewAccrualGate(ledger).Ensure(ctx, emp, company.Policy, req.StartDate.YearMonth())
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}
	if accrued {
		s.logger.Debug("accrual applied before allocation",
			zap.String("employee_id", emp.ID),
			zap.String("month", string(cur.LastAccruedYearMonth)),
		)
	}

	alloc, err := Allocate(AllocationInput{
		ChargeableDays: charge.Days,
		Type:           req.Type,
		FallbackType:   req.FallbackType,
		Caps:           company.Policy.TypeCaps,
		UsedSoFar:      cur.Usage,
		PoolNow:        cur.TotalLeaveAvailable,
	}, mode)
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}

	next, err := ledger.Apply(ctx, emp.ID, cur, alloc, company.Policy.TypeCaps)
	if err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}

	now := s.now().UTC()
	req.Status = StatusApproved
	req.Allocations = alloc
	req.ChargeableDays = charge.Days
	req.DecidedBy = actor.ID
	req.DecidedAt = &now
	req.UpdatedAt = now
	if err := tx.DecideRequest(ctx, req); err != nil {
		return LeaveRequest{}, EmployeeLedger{}, err
	}
	return req, next, nil
}

// =============================================================================
// REJECT
// =============================================================================

// Reject moves a PENDING request to REJECTED. The ledger is not touched.
func (s *Service) Reject(ctx context.Context, requestID string, actor Actor, reason string) (LeaveRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if err := authorizeDecision(req, actor, "reject"); err != nil {
		return LeaveRequest{}, err
	}
	if err := requirePending(req); err != nil {
		return LeaveRequest{}, err
	}

	now := s.now().UTC()
	req.Status = StatusRejected
	req.DecidedBy = actor.ID
	req.DecidedAt = &now
	req.RejectionReason = strings.TrimSpace(reason)
	req.UpdatedAt = now
	if err := s.store.DecideRequest(ctx, req); err != nil {
		return LeaveRequest{}, err
	}

	s.logger.Info("leave rejected", zap.String("request_id", req.ID), zap.String("actor_id", actor.ID))
	s.publish(ctx, events.TypeLeaveRejected, req, map[string]any{"reason": req.RejectionReason})
	return req, nil
}

func requirePending(req LeaveRequest) error {
	if req.Status != StatusPending {
		return &generic.StateConflictError{
			Resource: "leave request",
			ID:       req.ID,
			Current:  string(req.Status),
			Required: string(StatusPending),
		}
	}
	return nil
}

// authorizeDecision admits the company's admins and the assigned approver.
func authorizeDecision(req LeaveRequest, actor Actor, action string) error {
	if actor.AdminOf(req.CompanyID) {
		return nil
	}
	if actor.MemberOf(req.CompanyID) && actor.ID != "" && actor.ID == req.ApproverID {
		return nil
	}
	return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Resource: "leave request " + req.ID}
}

// RequireMember fails with an AuthorizationError unless actor belongs to
// companyID. Company reads use it.
func RequireMember(actor Actor, companyID, action string) error {
	if actor.MemberOf(companyID) {
		return nil
	}
	return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Resource: "company " + companyID}
}

func requireAdmin(actor Actor, companyID, action string) error {
	if actor.AdminOf(companyID) {
		return nil
	}
	return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Resource: "company " + companyID}
}

// =============================================================================
// PREVIEW & READ MODELS
// =============================================================================

// PreviewInput describes a hypothetical request.
type PreviewInput struct {
	EmployeeID   string       `json:"employee_id" validate:"required"`
	Type         string       `json:"type" validate:"required"`
	FallbackType string       `json:"fallback_type"`
	StartDate    generic.Date `json:"start_date"`
	EndDate      generic.Date `json:"end_date"`
}

// Preview is what Approve would do right now, without writing anything.
type Preview struct {
	Chargeable  Chargeable
	Allocations Buckets
	Before      EmployeeLedger
	After       EmployeeLedger
}

func (s *Service) Preview(ctx context.Context, in PreviewInput) (Preview, error) {
	if err := s.validateStruct(in); err != nil {
		return Preview{}, err
	}
	typ, fb, period, err := s.parseRequestFields(in.Type, in.FallbackType, in.StartDate, in.EndDate)
	if err != nil {
		return Preview{}, err
	}

	emp, err := s.store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return Preview{}, err
	}
	company, err := s.store.GetCompany(ctx, emp.CompanyID)
	if err != nil {
		return Preview{}, err
	}
	charge, err := s.chargeable(ctx, s.store, company, period)
	if err != nil {
		return Preview{}, err
	}

	before := emp.Ledger
	if delta, due := AccrualDue(before, period.Start.YearMonth(), company.Policy.MonthlyAccrual); due {
		before.TotalLeaveAvailable = before.TotalLeaveAvailable.Add(delta)
		before.LastAccruedYearMonth = period.Start.YearMonth()
	}

	alloc, err := Allocate(AllocationInput{
		ChargeableDays: charge.Days,
		Type:           typ,
		FallbackType:   fb,
		Caps:           company.Policy.TypeCaps,
		UsedSoFar:      before.Usage,
		PoolNow:        before.TotalLeaveAvailable,
	}, s.approvalMode)
	if err != nil {
		return Preview{}, err
	}

	return Preview{
		Chargeable:  charge,
		Allocations: alloc,
		Before:      before,
		After:       ApplyAllocation(before, alloc, company.Policy.TypeCaps),
	}, nil
}

// ChargeableDays resolves the company calendar over p without an employee.
func (s *Service) ChargeableDays(ctx context.Context, companyID string, p generic.Period) (Chargeable, error) {
	if err := p.Validate(); err != nil {
		return Chargeable{}, err
	}
	if err := s.checkSpan(p); err != nil {
		return Chargeable{}, err
	}
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return Chargeable{}, err
	}
	return s.chargeable(ctx, s.store, company, p)
}

func (s *Service) chargeable(ctx context.Context, st Store, company Company, p generic.Period) (Chargeable, error) {
	overrides, err := st.ListDayOverrides(ctx, company.ID, p)
	if err != nil {
		return Chargeable{}, fmt.Errorf("list overrides of company %s: %w", company.ID, err)
	}
	return ChargeableForPeriod(CalendarFor(company, overrides), p, company.Policy.Sandwich)
}

// GetLedger returns the employee's ledger. Employees may read their own;
// the assigned approver and the company's admins may read it too.
func (s *Service) GetLedger(ctx context.Context, employeeID string, actor Actor) (EmployeeLedger, error) {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return EmployeeLedger{}, err
	}
	if !actor.AdminOf(emp.CompanyID) && !(actor.MemberOf(emp.CompanyID) && (actor.ID == emp.ID || actor.ID == emp.ApproverID)) {
		return EmployeeLedger{}, &generic.AuthorizationError{ActorID: actor.ID, Action: "read ledger of", Resource: "employee " + emp.ID}
	}
	return emp.Ledger, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (LeaveRequest, error) {
	return s.store.GetRequest(ctx, id)
}

// =============================================================================
// ACCRUAL
// =============================================================================

// AccrualReport summarizes one RunAccrual pass.
type AccrualReport struct {
	Month    generic.YearMonth
	Checked  int
	Credited int
	Failed   int
}

// RunAccrual brings every employee of companyID (all companies when empty)
// up to month. Employees already accrued through month are skipped, so the
// pass can be repeated safely.
func (s *Service) RunAccrual(ctx context.Context, companyID string, month generic.YearMonth) (AccrualReport, error) {
	report := AccrualReport{Month: month}

	employees, err := s.store.ListEmployees(ctx, companyID)
	if err != nil {
		return report, fmt.Errorf("list employees: %w", err)
	}

	companies := make(map[string]Company)
	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		company, ok := companies[emp.CompanyID]
		if !ok {
			company, err = s.store.GetCompany(ctx, emp.CompanyID)
			if err != nil {
				report.Failed++
				s.logger.Warn("accrual skipped: company missing", zap.String("employee_id", emp.ID), zap.Error(err))
				continue
			}
			companies[emp.CompanyID] = company
		}

		credited, err := s.accrueEmployee(ctx, emp.ID, company.Policy, month)
		if err != nil {
			report.Failed++
			s.logger.Warn("accrual failed", zap.String("employee_id", emp.ID), zap.Error(err))
			continue
		}
		if credited {
			report.Credited++
		}
	}

	s.logger.Info("accrual run complete",
		zap.String("month", string(month)),
		zap.Int("checked", report.Checked),
		zap.Int("credited", report.Credited),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) accrueEmployee(ctx context.Context, employeeID string, policy LeavePolicy, month generic.YearMonth) (bool, error) {
	unlock, err := s.locker.Lock(ctx, lock.EmployeeKey(employeeID))
	if err != nil {
		return false, err
	}
	defer unlock()

	var (
		credited bool
		ledger   EmployeeLedger
	)
	err = s.withRetry(ctx, func(ctx context.Context, tx Store) error {
		emp, err := tx.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		ledger, credited, err = NewAccrualGate(NewBalanceLedger(tx)).Ensure(ctx, emp, policy, month)
		return err
	})
	if err != nil || !credited {
		return false, err
	}
	err = s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeLeaveAccrued,
		Key:        employeeID,
		OccurredAt: s.now().UTC(),
		Payload: map[string]any{
			"month":                 string(month),
			"total_leave_available": ledger.TotalLeaveAvailable.String(),
		},
	})
	if err != nil {
		s.logger.Warn("event publish failed", zap.String("type", events.TypeLeaveAccrued), zap.String("employee_id", employeeID), zap.Error(err))
	}
	return true, nil
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// SaveCompany creates or replaces a company and its policy. Admin only.
func (s *Service) SaveCompany(ctx context.Context, c Company, actor Actor) (Company, error) {
	if err := requireAdmin(actor, c.ID, "update"); err != nil {
		return Company{}, err
	}
	if err := ValidateCompany(c); err != nil {
		return Company{}, err
	}
	now := s.now().UTC()
	if existing, err := s.store.GetCompany(ctx, c.ID); err == nil {
		c.CreatedAt = existing.CreatedAt
	} else if !generic.IsNotFound(err) {
		return Company{}, err
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if err := s.store.SaveCompany(ctx, c); err != nil {
		return Company{}, fmt.Errorf("save company %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *Service) GetCompany(ctx context.Context, id string) (Company, error) {
	return s.store.GetCompany(ctx, id)
}

// ValidateCompany checks the policy is usable by the engine.
func ValidateCompany(c Company) error {
	if strings.TrimSpace(c.ID) == "" {
		return generic.NewValidation("id", "company id is required")
	}
	for _, t := range []LeaveType{Paid, Casual, Sick} {
		capT, _ := c.Policy.TypeCaps.Cap(t)
		if capT.IsNegative() {
			return generic.NewValidation("type_caps."+string(t), "cap must not be negative, got %s", capT)
		}
	}
	if c.Policy.MonthlyAccrual.IsNegative() {
		return generic.NewValidation("monthly_accrual", "must not be negative, got %s", c.Policy.MonthlyAccrual)
	}
	if c.Policy.Sandwich.MinDays < 0 {
		return generic.NewValidation("sandwich.min_days", "must not be negative, got %d", c.Policy.Sandwich.MinDays)
	}
	return nil
}

// UpsertDayOverride sets the override for (company, date). Admin only.
func (s *Service) UpsertDayOverride(ctx context.Context, o DayOverride, actor Actor) (DayOverride, error) {
	if err := requireAdmin(actor, o.CompanyID, "override calendar of"); err != nil {
		return DayOverride{}, err
	}
	if o.Date.IsZero() {
		return DayOverride{}, generic.NewValidation("date", "date is required")
	}
	kind, err := ParseOverrideKind(string(o.Kind))
	if err != nil {
		return DayOverride{}, err
	}
	o.Kind = kind
	if _, err := s.store.GetCompany(ctx, o.CompanyID); err != nil {
		return DayOverride{}, err
	}
	if o.ID == "" {
		o.ID = s.newID()
	}
	o.CreatedAt = s.now().UTC()
	if err := s.store.UpsertDayOverride(ctx, o); err != nil {
		return DayOverride{}, fmt.Errorf("upsert override %s: %w", o.Date, err)
	}
	return o, nil
}

func (s *Service) DeleteDayOverride(ctx context.Context, companyID string, date generic.Date, actor Actor) error {
	if err := requireAdmin(actor, companyID, "override calendar of"); err != nil {
		return err
	}
	return s.store.DeleteDayOverride(ctx, companyID, date)
}

func (s *Service) ListDayOverrides(ctx context.Context, companyID string, p generic.Period) ([]DayOverride, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListDayOverrides(ctx, companyID, p)
}

// RegisterEmployeeInput creates an employee with an opening ledger.
type RegisterEmployeeInput struct {
	ID             string          `json:"id" validate:"omitempty,max=64"`
	CompanyID      string          `json:"company_id" validate:"required"`
	Code           string          `json:"code" validate:"omitempty,max=64"`
	Email          string          `json:"email" validate:"omitempty,email"`
	Name           string          `json:"name" validate:"required"`
	ApproverID     string          `json:"approver_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Usage          Buckets         `json:"usage"`
}

// RegisterEmployee creates an employee. Admin only. The opening balance and
// usage carry history from a previous system.
func (s *Service) RegisterEmployee(ctx context.Context, in RegisterEmployeeInput, actor Actor) (Employee, error) {
	if err := requireAdmin(actor, in.CompanyID, "register employee in"); err != nil {
		return Employee{}, err
	}
	if err := s.validateStruct(in); err != nil {
		return Employee{}, err
	}
	company, err := s.store.GetCompany(ctx, in.CompanyID)
	if err != nil {
		return Employee{}, err
	}
	if in.ID == "" {
		in.ID = s.newID()
	}
	emp := Employee{
		ID:         in.ID,
		CompanyID:  company.ID,
		Code:       in.Code,
		Email:      strings.ToLower(in.Email),
		Name:       in.Name,
		ApproverID: in.ApproverID,
		Ledger: EmployeeLedger{
			TotalLeaveAvailable: in.OpeningBalance,
			Usage:               in.Usage,
			Balances:            DeriveBalances(in.Usage, company.Policy.TypeCaps),
		},
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveEmployee(ctx, emp); err != nil {
		return Employee{}, fmt.Errorf("save employee %s: %w", emp.ID, err)
	}
	return emp, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// withRetry runs fn in a transaction and retries it when the ledger CAS lost
// a race. Every other error is returned as is.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if !generic.IsRetryable(err) {
			return err
		}
		s.logger.Debug("ledger write lost a race, retrying", zap.Int("attempt", attempt))
	}
	return err
}

func (s *Service) publish(ctx context.Context, typ string, req LeaveRequest, extra map[string]any) {
	payload := map[string]any{
		"request_id":  req.ID,
		"company_id":  req.CompanyID,
		"employee_id": req.EmployeeID,
		"type":        req.Type,
		"start_date":  req.StartDate,
		"end_date":    req.EndDate,
		"status":      req.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	err := s.publisher.Publish(ctx, events.Event{
		Type:       typ,
		Key:        req.EmployeeID,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		s.logger.Warn("event publish failed", zap.String("type", typ), zap.String("request_id", req.ID), zap.Error(err))
	}
}

// validateStruct turns validator errors into a ValidationError on the first
// failing field.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return generic.NewValidation(fe.Field(), "failed %q validation", fe.Tag())
	}
	return generic.NewValidation("input", "%v", err)
}

// newValidator reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
