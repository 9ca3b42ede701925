package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/events"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/lock"
)

// =============================================================================
// BACKFILL - Batch import of historical leave
// =============================================================================

// BackfillRow is one imported leave. EmployeeRef matches an employee ID,
// code or email within the company.
type BackfillRow struct {
	EmployeeRef  string `json:"employee_ref" validate:"required"`
	Type         string `json:"type" validate:"required"`
	FallbackType string `json:"fallback_type"`
	StartDate    string `json:"start_date" validate:"required"`
	EndDate      string `json:"end_date" validate:"required"`
	Reason       string `json:"reason" validate:"max=500"`
	Approve      bool   `json:"approve"`
}

// BackfillRowResult reports the outcome of one row. Index is zero-based.
type BackfillRowResult struct {
	Index          int
	EmployeeRef    string
	RequestID      string
	Status         RequestStatus
	ChargeableDays string
	Allocations    Buckets
	Err            error
}

func (r BackfillRowResult) OK() bool { return r.Err == nil }

// BackfillResult aggregates a batch. Errors holds one message per failed row.
type BackfillResult struct {
	Processed int
	Succeeded int
	Failed    int
	Rows      []BackfillRowResult
	Errors    []string
}

// Backfill imports rows independently: a failing row is reported and the
// batch moves on. Rows with Approve set are funded immediately with strict
// fallback rules: when the primary type cannot cover the row and no
// fallback is given, the row fails with "Insufficient <type> leave" instead
// of defaulting to unpaid. Admin only.
func (s *Service) Backfill(ctx context.Context, companyID string, actor Actor, rows []BackfillRow) (BackfillResult, error) {
	if err := requireAdmin(actor, companyID, "backfill"); err != nil {
		return BackfillResult{}, err
	}
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return BackfillResult{}, err
	}

	logger := s.logger.With(zap.String("company_id", companyID), zap.Int("rows", len(rows)))
	result := BackfillResult{Rows: make([]BackfillRowResult, 0, len(rows))}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res := s.backfillRow(ctx, companyID, actor, row)
		res.Index = i
		result.Processed++
		if res.OK() {
			result.Succeeded++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.EmployeeRef, res.Err))
			logger.Debug("backfill row failed", zap.Int("row", i+1), zap.Error(res.Err))
		}
		result.Rows = append(result.Rows, res)
	}

	logger.Info("backfill complete",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) backfillRow(ctx context.Context, companyID string, actor Actor, row BackfillRow) BackfillRowResult {
	res := BackfillRowResult{EmployeeRef: row.EmployeeRef}

	req, err := s.parseBackfillRow(row)
	if err != nil {
		res.Err = err
		return res
	}

	emp, err := s.store.FindEmployee(ctx, companyID, strings.TrimSpace(row.EmployeeRef))
	if err != nil {
		res.Err = err
		return res
	}

	now := s.now().UTC()
	req.ID = s.newID()
	req.CompanyID = companyID
	req.EmployeeID = emp.ID
	req.ApproverID = emp.ApproverID
	req.Source = SourceBackfill
	req.Status = StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	res.RequestID = req.ID

	if !row.Approve {
		if err := s.store.CreateRequest(ctx, req); err != nil {
			res.Err = err
			return res
		}
		res.Status = StatusPending
		return res
	}

	unlock, err := s.locker.Lock(ctx, lock.EmployeeKey(emp.ID))
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	var approved LeaveRequest
	err = s.withRetry(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}
		approved, _, err = s.approveInTx(ctx, tx, req, actor, FallbackRequired)
		return err
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Status = approved.Status
	res.ChargeableDays = approved.ChargeableDays.String()
	res.Allocations = approved.Allocations
	s.publish(ctx, events.TypeLeaveApproved, approved, map[string]any{
		"allocations": approved.Allocations,
		"source":      SourceBackfill,
	})
	return res
}

// parseBackfillRow applies the strict import validation. Unlike interactive
// requests, an unknown fallback never degrades to a default.
func (s *Service) parseBackfillRow(row BackfillRow) (LeaveRequest, error) {
	if err := s.validateStruct(row); err != nil {
		return LeaveRequest{}, err
	}
	start, err := generic.ParseDate(row.StartDate)
	if err != nil {
		return LeaveRequest{}, &generic.ValidationError{Field: "start_date", Message: err.Error()}
	}
	end, err := generic.ParseDate(row.EndDate)
	if err != nil {
		return LeaveRequest{}, &generic.ValidationError{Field: "end_date", Message: err.Error()}
	}
	typ, fb, period, err := s.parseRequestFields(row.Type, row.FallbackType, start, end)
	if err != nil {
		return LeaveRequest{}, err
	}
	return LeaveRequest{
		StartDate:    period.Start,
		EndDate:      period.End,
		Type:         typ,
		FallbackType: fb,
		Reason:       strings.TrimSpace(row.Reason),
	}, nil
}

// IsInsufficientLeave reports a backfill row rejected for lack of balance.
func IsInsufficientLeave(err error) bool {
	return errors.Is(err, generic.ErrInsufficientLeave)
}
