// Package memory provides an in-memory leave.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps everything in maps behind one RWMutex. WithTx holds the write
// lock for the whole callback and rolls back from a snapshot on error.
type Store struct {
	mu sync.RWMutex
	st state
}

type overrideKey struct {
	companyID string
	date      generic.Date
}

type state struct {
	companies map[string]leave.Company
	employees map[string]leave.Employee
	requests  map[string]leave.LeaveRequest
	overrides map[overrideKey]leave.DayOverride
}

func New() *Store {
	return &Store{st: state{
		companies: make(map[string]leave.Company),
		employees: make(map[string]leave.Employee),
		requests:  make(map[string]leave.LeaveRequest),
		overrides: make(map[overrideKey]leave.DayOverride),
	}}
}

var _ leave.Store = (*Store)(nil)

func (m *Store) GetCompany(ctx context.Context, id string) (leave.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getCompany(id)
}

func (m *Store) SaveCompany(ctx context.Context, c leave.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveCompany(c)
}

func (m *Store) ListDayOverrides(ctx context.Context, companyID string, p generic.Period) ([]leave.DayOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listDayOverrides(companyID, p), nil
}

func (m *Store) UpsertDayOverride(ctx context.Context, o leave.DayOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.upsertDayOverride(o)
	return nil
}

func (m *Store) DeleteDayOverride(ctx context.Context, companyID string, date generic.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteDayOverride(companyID, date)
}

func (m *Store) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEmployee(id)
}

func (m *Store) FindEmployee(ctx context.Context, companyID, ref string) (leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findEmployee(companyID, ref)
}

func (m *Store) ListEmployees(ctx context.Context, companyID string) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listEmployees(companyID), nil
}

func (m *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveEmployee(e)
	return nil
}

func (m *Store) UpdateLedger(ctx context.Context, employeeID string, expectedVersion int64, next leave.EmployeeLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateLedger(employeeID, expectedVersion, next)
}

func (m *Store) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getRequest(id)
}

func (m *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createRequest(r)
}

func (m *Store) DecideRequest(ctx context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.decideRequest(r)
}

// WithTx executes fn within a transaction, simulated with a snapshot and a
// rollback on error.
func (m *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(ctx, &txView{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// =============================================================================
// STATE - Lock-free operations shared by Store and txView
// =============================================================================

func (s *state) clone() state {
	c := state{
		companies: make(map[string]leave.Company, len(s.companies)),
		employees: make(map[string]leave.Employee, len(s.employees)),
		requests:  make(map[string]leave.LeaveRequest, len(s.requests)),
		overrides: make(map[overrideKey]leave.DayOverride, len(s.overrides)),
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.overrides {
		c.overrides[k] = v
	}
	return c
}

func (s *state) getCompany(id string) (leave.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return leave.Company{}, generic.NewNotFound("company", id)
	}
	c.BankHolidays = append([]generic.Date(nil), c.BankHolidays...)
	return c, nil
}

func (s *state) saveCompany(c leave.Company) error {
	if c.ID == "" {
		return generic.NewValidation("id", "company id is required")
	}
	c.BankHolidays = append([]generic.Date(nil), c.BankHolidays...)
	s.companies[c.ID] = c
	return nil
}

func (s *state) listDayOverrides(companyID string, p generic.Period) []leave.DayOverride {
	var out []leave.DayOverride
	for k, o := range s.overrides {
		if k.companyID == companyID && p.Contains(k.date) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *state) upsertDayOverride(o leave.DayOverride) {
	k := overrideKey{companyID: o.CompanyID, date: o.Date}
	if existing, ok := s.overrides[k]; ok {
		o.ID = existing.ID
	}
	s.overrides[k] = o
}

func (s *state) deleteDayOverride(companyID string, date generic.Date) error {
	k := overrideKey{companyID: companyID, date: date}
	if _, ok := s.overrides[k]; !ok {
		return generic.NewNotFound("day override", companyID+"/"+date.String())
	}
	delete(s.overrides, k)
	return nil
}

func (s *state) getEmployee(id string) (leave.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return leave.Employee{}, generic.NewNotFound("employee", id)
	}
	return e, nil
}

func (s *state) findEmployee(companyID, ref string) (leave.Employee, error) {
	if e, ok := s.employees[ref]; ok && e.CompanyID == companyID {
		return e, nil
	}
	for _, e := range s.employees {
		if e.CompanyID != companyID {
			continue
		}
		if (e.Code != "" && strings.EqualFold(e.Code, ref)) || (e.Email != "" && strings.EqualFold(e.Email, ref)) {
			return e, nil
		}
	}
	return leave.Employee{}, generic.NewNotFound("employee", ref)
}

func (s *state) listEmployees(companyID string) []leave.Employee {
	var out []leave.Employee
	for _, e := range s.employees {
		if companyID == "" || e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) saveEmployee(e leave.Employee) {
	if existing, ok := s.employees[e.ID]; ok {
		e.Ledger = existing.Ledger
		e.CreatedAt = existing.CreatedAt
	}
	s.employees[e.ID] = e
}

func (s *state) updateLedger(employeeID string, expectedVersion int64, next leave.EmployeeLedger) error {
	e, ok := s.employees[employeeID]
	if !ok {
		return generic.NewNotFound("employee", employeeID)
	}
	if e.Ledger.Version != expectedVersion {
		return fmt.Errorf("employee %s ledger at version %d, expected %d: %w",
			employeeID, e.Ledger.Version, expectedVersion, generic.ErrConcurrentModification)
	}
	next.Version = expectedVersion + 1
	e.Ledger = next
	s.employees[employeeID] = e
	return nil
}

func (s *state) getRequest(id string) (leave.LeaveRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return leave.LeaveRequest{}, generic.NewNotFound("leave request", id)
	}
	return r, nil
}

func (s *state) createRequest(r leave.LeaveRequest) error {
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("leave request %s: %w", r.ID, generic.ErrDuplicateKey)
	}
	if _, ok := s.employees[r.EmployeeID]; !ok {
		return generic.NewNotFound("employee", r.EmployeeID)
	}
	s.requests[r.ID] = r
	return nil
}

func (s *state) decideRequest(r leave.LeaveRequest) error {
	cur, ok := s.requests[r.ID]
	if !ok {
		return generic.NewNotFound("leave request", r.ID)
	}
	if cur.Status != leave.StatusPending {
		return &generic.StateConflictError{
			Resource: "leave request",
			ID:       r.ID,
			Current:  string(cur.Status),
			Required: string(leave.StatusPending),
		}
	}
	s.requests[r.ID] = r
	return nil
}

// =============================================================================
// TRANSACTION VIEW
// =============================================================================

// txView works on the locked state directly. The parent's write lock is
// held for its whole lifetime.
type txView struct {
	st *state
}

func (v *txView) GetCompany(_ context.Context, id string) (leave.Company, error) {
	return v.st.getCompany(id)
}

func (v *txView) SaveCompany(_ context.Context, c leave.Company) error {
	return v.st.saveCompany(c)
}

func (v *txView) ListDayOverrides(_ context.Context, companyID string, p generic.Period) ([]leave.DayOverride, error) {
	return v.st.listDayOverrides(companyID, p), nil
}

func (v *txView) UpsertDayOverride(_ context.Context, o leave.DayOverride) error {
	v.st.upsertDayOverride(o)
	return nil
}

func (v *txView) DeleteDayOverride(_ context.Context, companyID string, date generic.Date) error {
	return v.st.deleteDayOverride(companyID, date)
}

func (v *txView) GetEmployee(_ context.Context, id string) (leave.Employee, error) {
	return v.st.getEmployee(id)
}

func (v *txView) FindEmployee(_ context.Context, companyID, ref string) (leave.Employee, error) {
	return v.st.findEmployee(companyID, ref)
}

func (v *txView) ListEmployees(_ context.Context, companyID string) ([]leave.Employee, error) {
	return v.st.listEmployees(companyID), nil
}

func (v *txView) SaveEmployee(_ context.Context, e leave.Employee) error {
	v.st.saveEmployee(e)
	return nil
}

func (v *txView) UpdateLedger(_ context.Context, employeeID string, expectedVersion int64, next leave.EmployeeLedger) error {
	return v.st.updateLedger(employeeID, expectedVersion, next)
}

func (v *txView) GetRequest(_ context.Context, id string) (leave.LeaveRequest, error) {
	return v.st.getRequest(id)
}

func (v *txView) CreateRequest(_ context.Context, r leave.LeaveRequest) error {
	return v.st.createRequest(r)
}

func (v *txView) DecideRequest(_ context.Context, r leave.LeaveRequest) error {
	return v.st.decideRequest(r)
}

// WithTx inside a transaction joins it.
func (v *txView) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	return fn(ctx, v)
}
