/*
Package sqlstore provides a database/sql implementation of leave.Store for
SQLite (mattn/go-sqlite3) and PostgreSQL (jackc/pgx stdlib).

KEY TABLES:
  companies:      tenant + leave policy + bank holidays (JSON array)
  day_overrides:  one row per (company_id, date)
  employees:      profile + the ledger document (pool, usage, balances,
                  accrual marker, version)
  leave_requests: request lifecycle + allocation snapshot

LEDGER CAS:
  UpdateLedger is a single conditional UPDATE:

    UPDATE employees SET ..., version = version + 1
     WHERE id = ? AND version = ?

  Zero affected rows means either the employee is gone (NotFoundError) or a
  concurrent writer bumped the version (ErrConcurrentModification).

DIALECTS:
  Queries are written with '?' placeholders and rebound to $1..$n for
  PostgreSQL. Quantities are stored as decimal TEXT, dates as YYYY-MM-DD,
  timestamps as RFC3339, so the schema is identical on both engines.

CONCURRENCY:
  SQLite is opened with a single connection: one writer at a time and a
  shared ":memory:" database. PostgreSQL relies on row locks and the CAS.

USAGE:
  store, err := sqlstore.NewSQLite("./data/leave.db")
  store, err := sqlstore.New(sqlstore.DialectPostgres, os.Getenv("DB_DSN"))
*/
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// Dialect is also the database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectSQLite, "sqlite":
		return DialectSQLite, nil
	case DialectPostgres, "postgres", "postgresql":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported sql dialect %q", s)
}

// Store implements leave.Store on a *sql.DB.
type Store struct {
	queries
	db *sql.DB
}

var _ leave.Store = (*Store)(nil)

// NewSQLite opens a SQLite database at path. Use ":memory:" for tests.
func NewSQLite(path string) (*Store, error) {
	return New(DialectSQLite, path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
}

// New opens dsn with the dialect's driver and migrates the schema.
func New(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	s := &Store{queries: queries{q: db, dialect: dialect}, db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(ctx, &txStore{queries: queries{q: sqlTx, dialect: s.dialect}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	queries
}

// WithTx inside a transaction joins it.
func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx leave.Store) error) error {
	return fn(ctx, t)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cap_paid TEXT NOT NULL,
		cap_casual TEXT NOT NULL,
		cap_sick TEXT NOT NULL,
		sandwich_enabled INTEGER NOT NULL DEFAULT 0,
		sandwich_min_days INTEGER NOT NULL DEFAULT 0,
		monthly_accrual TEXT NOT NULL,
		bank_holidays_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS day_overrides (
		id TEXT NOT NULL,
		company_id TEXT NOT NULL REFERENCES companies(id),
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (company_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		code TEXT,
		email TEXT,
		name TEXT NOT NULL,
		approver_id TEXT,
		total_leave_available TEXT NOT NULL,
		usage_paid TEXT NOT NULL,
		usage_casual TEXT NOT NULL,
		usage_sick TEXT NOT NULL,
		usage_unpaid TEXT NOT NULL,
		balance_paid TEXT NOT NULL,
		balance_casual TEXT NOT NULL,
		balance_sick TEXT NOT NULL,
		balance_unpaid TEXT NOT NULL,
		last_accrued_year_month TEXT,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_employees_company ON employees(company_id)`,
	`CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		approver_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		type TEXT NOT NULL,
		fallback_type TEXT,
		reason TEXT,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		alloc_paid TEXT NOT NULL DEFAULT '0',
		alloc_casual TEXT NOT NULL DEFAULT '0',
		alloc_sick TEXT NOT NULL DEFAULT '0',
		alloc_unpaid TEXT NOT NULL DEFAULT '0',
		chargeable_days TEXT NOT NULL DEFAULT '0',
		decided_by TEXT,
		decided_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_employee ON leave_requests(employee_id, status)`,
}

// =============================================================================
// QUERIES - Shared by Store and txStore
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type queries struct {
	q       querier
	dialect Dialect
}

func (qs queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qs.q.ExecContext(ctx, rebind(qs.dialect, query), args...)
}

func (qs queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qs.q.QueryContext(ctx, rebind(qs.dialect, query), args...)
}

func (qs queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qs.q.QueryRowContext(ctx, rebind(qs.dialect, query), args...)
}

// rebind turns '?' placeholders into $1..$n for PostgreSQL.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// COMPANIES & OVERRIDES
// =============================================================================

func (qs queries) GetCompany(ctx context.Context, id string) (leave.Company, error) {
	row := qs.queryRow(ctx, `
		SELECT id, name, cap_paid, cap_casual, cap_sick, sandwich_enabled, sandwich_min_days,
		       monthly_accrual, bank_holidays_json, created_at, updated_at
		FROM companies WHERE id = ?`, id)

	var (
		c                    leave.Company
		sandwich             int
		holidays             string
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name,
		&c.Policy.TypeCaps.Paid, &c.Policy.TypeCaps.Casual, &c.Policy.TypeCaps.Sick,
		&sandwich, &c.Policy.Sandwich.MinDays, &c.Policy.MonthlyAccrual,
		&holidays, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Company{}, generic.NewNotFound("company", id)
	}
	if err != nil {
		return leave.Company{}, fmt.Errorf("get company %s: %w", id, err)
	}

	c.Policy.Sandwich.Enabled = sandwich != 0
	if err := json.Unmarshal([]byte(holidays), &c.BankHolidays); err != nil {
		return leave.Company{}, fmt.Errorf("decode bank holidays of company %s: %w", id, err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func (qs queries) SaveCompany(ctx context.Context, c leave.Company) error {
	holidays := c.BankHolidays
	if holidays == nil {
		holidays = []generic.Date{}
	}
	holidaysJSON, err := json.Marshal(holidays)
	if err != nil {
		return err
	}
	_, err = qs.exec(ctx, `
		INSERT INTO companies (id, name, cap_paid, cap_casual, cap_sick, sandwich_enabled,
		                       sandwich_min_days, monthly_accrual, bank_holidays_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			cap_paid = excluded.cap_paid,
			cap_casual = excluded.cap_casual,
			cap_sick = excluded.cap_sick,
			sandwich_enabled = excluded.sandwich_enabled,
			sandwich_min_days = excluded.sandwich_min_days,
			monthly_accrual = excluded.monthly_accrual,
			bank_holidays_json = excluded.bank_holidays_json,
			updated_at = excluded.updated_at`,
		c.ID, c.Name,
		c.Policy.TypeCaps.Paid.String(), c.Policy.TypeCaps.Casual.String(), c.Policy.TypeCaps.Sick.String(),
		boolInt(c.Policy.Sandwich.Enabled), c.Policy.Sandwich.MinDays, c.Policy.MonthlyAccrual.String(),
		string(holidaysJSON), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save company %s: %w", c.ID, err)
	}
	return nil
}

func (qs queries) ListDayOverrides(ctx context.Context, companyID string, p generic.Period) ([]leave.DayOverride, error) {
	rows, err := qs.query(ctx, `
		SELECT id, company_id, date, kind, note, created_at
		FROM day_overrides
		WHERE company_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, companyID, p.Start.String(), p.End.String())
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []leave.DayOverride
	for rows.Next() {
		var (
			o         leave.DayOverride
			day, kind string
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.CompanyID, &day, &kind, &note, &createdAt); err != nil {
			return nil, err
		}
		if o.Date, err = generic.ParseDate(day); err != nil {
			return nil, err
		}
		o.Kind = leave.OverrideKind(kind)
		o.Note = note.String
		o.CreatedAt = parseTime(createdAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (qs queries) UpsertDayOverride(ctx context.Context, o leave.DayOverride) error {
	_, err := qs.exec(ctx, `
		INSERT INTO day_overrides (id, company_id, date, kind, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, date) DO UPDATE SET
			kind = excluded.kind,
			note = excluded.note`,
		o.ID, o.CompanyID, o.Date.String(), string(o.Kind), nullString(o.Note), formatTime(o.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return generic.NewNotFound("company", o.CompanyID)
		}
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

func (qs queries) DeleteDayOverride(ctx context.Context, companyID string, date generic.Date) error {
	res, err := qs.exec(ctx, `DELETE FROM day_overrides WHERE company_id = ? AND date = ?`, companyID, date.String())
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NewNotFound("day override", companyID+"/"+date.String())
	}
	return nil
}

// =============================================================================
// EMPLOYEES & LEDGER
// =============================================================================

const employeeColumns = `id, company_id, code, email, name, approver_id,
	total_leave_available, usage_paid, usage_casual, usage_sick, usage_unpaid,
	balance_paid, balance_casual, balance_sick, balance_unpaid,
	last_accrued_year_month, version, created_at`

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		e                       leave.Employee
		code, email, approverID sql.NullString
		marker                  sql.NullString
		createdAt               string
	)
	l := &e.Ledger
	err := row.Scan(&e.ID, &e.CompanyID, &code, &email, &e.Name, &approverID,
		&l.TotalLeaveAvailable, &l.Usage.Paid, &l.Usage.Casual, &l.Usage.Sick, &l.Usage.Unpaid,
		&l.Balances.Paid, &l.Balances.Casual, &l.Balances.Sick, &l.Balances.Unpaid,
		&marker, &l.Version, &createdAt)
	if err != nil {
		return leave.Employee{}, err
	}
	e.Code = code.String
	e.Email = email.String
	e.ApproverID = approverID.String
	l.LastAccruedYearMonth = generic.YearMonth(marker.String)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func (qs queries) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	e, err := scanEmployee(qs.queryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, generic.NewNotFound("employee", id)
	}
	if err != nil {
		return leave.Employee{}, fmt.Errorf("get employee %s: %w", id, err)
	}
	return e, nil
}

func (qs queries) FindEmployee(ctx context.Context, companyID, ref string) (leave.Employee, error) {
	e, err := scanEmployee(qs.queryRow(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE company_id = ? AND (id = ? OR LOWER(code) = LOWER(?) OR LOWER(email) = LOWER(?))
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END
		LIMIT 1`, companyID, ref, ref, ref, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, generic.NewNotFound("employee", ref)
	}
	if err != nil {
		return leave.Employee{}, fmt.Errorf("find employee %s: %w", ref, err)
	}
	return e, nil
}

func (qs queries) ListEmployees(ctx context.Context, companyID string) ([]leave.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	var args []any
	if companyID != "" {
		query += ` WHERE company_id = ?`
		args = append(args, companyID)
	}
	rows, err := qs.query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (qs queries) SaveEmployee(ctx context.Context, e leave.Employee) error {
	l := e.Ledger
	_, err := qs.exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			company_id = excluded.company_id,
			code = excluded.code,
			email = excluded.email,
			name = excluded.name,
			approver_id = excluded.approver_id`,
		e.ID, e.CompanyID, nullString(e.Code), nullString(e.Email), e.Name, nullString(e.ApproverID),
		l.TotalLeaveAvailable.String(), l.Usage.Paid.String(), l.Usage.Casual.String(), l.Usage.Sick.String(), l.Usage.Unpaid.String(),
		l.Balances.Paid.String(), l.Balances.Casual.String(), l.Balances.Sick.String(), l.Balances.Unpaid.String(),
		nullString(string(l.LastAccruedYearMonth)), l.Version, formatTime(e.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return generic.NewNotFound("company", e.CompanyID)
		}
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	return nil
}

func (qs queries) UpdateLedger(ctx context.Context, employeeID string, expectedVersion int64, next leave.EmployeeLedger) error {
	res, err := qs.exec(ctx, `
		UPDATE employees SET
			total_leave_available = ?,
			usage_paid = ?, usage_casual = ?, usage_sick = ?, usage_unpaid = ?,
			balance_paid = ?, balance_casual = ?, balance_sick = ?, balance_unpaid = ?,
			last_accrued_year_month = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		next.TotalLeaveAvailable.String(),
		next.Usage.Paid.String(), next.Usage.Casual.String(), next.Usage.Sick.String(), next.Usage.Unpaid.String(),
		next.Balances.Paid.String(), next.Balances.Casual.String(), next.Balances.Sick.String(), next.Balances.Unpaid.String(),
		nullString(string(next.LastAccruedYearMonth)),
		employeeID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var current int64
	err = qs.queryRow(ctx, `SELECT version FROM employees WHERE id = ?`, employeeID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NewNotFound("employee", employeeID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("employee %s ledger at version %d, expected %d: %w",
		employeeID, current, expectedVersion, generic.ErrConcurrentModification)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = `id, company_id, employee_id, approver_id, start_date, end_date, type,
	fallback_type, reason, source, status, alloc_paid, alloc_casual, alloc_sick, alloc_unpaid,
	chargeable_days, decided_by, decided_at, rejection_reason, created_at, updated_at`

func (qs queries) GetRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	var (
		r                               leave.LeaveRequest
		approverID, fallback, reason    sql.NullString
		decidedBy, decidedAt, rejection sql.NullString
		start, end, typ, source, status string
		createdAt, updatedAt            string
	)
	err := qs.queryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id).Scan(
		&r.ID, &r.CompanyID, &r.EmployeeID, &approverID, &start, &end, &typ,
		&fallback, &reason, &source, &status,
		&r.Allocations.Paid, &r.Allocations.Casual, &r.Allocations.Sick, &r.Allocations.Unpaid,
		&r.ChargeableDays, &decidedBy, &decidedAt, &rejection, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, generic.NewNotFound("leave request", id)
	}
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("get leave request %s: %w", id, err)
	}

	if r.StartDate, err = generic.ParseDate(start); err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.EndDate, err = generic.ParseDate(end); err != nil {
		return leave.LeaveRequest{}, err
	}
	r.ApproverID = approverID.String
	r.Type = leave.LeaveType(typ)
	r.FallbackType = leave.LeaveType(fallback.String)
	r.Reason = reason.String
	r.Source = leave.RequestSource(source)
	r.Status = leave.RequestStatus(status)
	r.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := parseTime(decidedAt.String)
		r.DecidedAt = &t
	}
	r.RejectionReason = rejection.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

func (qs queries) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := qs.exec(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CompanyID, r.EmployeeID, nullString(r.ApproverID), r.StartDate.String(), r.EndDate.String(), string(r.Type),
		nullString(string(r.FallbackType)), nullString(r.Reason), string(r.Source), string(r.Status),
		r.Allocations.Paid.String(), r.Allocations.Casual.String(), r.Allocations.Sick.String(), r.Allocations.Unpaid.String(),
		r.ChargeableDays.String(), nullString(r.DecidedBy), nullTime(r.DecidedAt), nullString(r.RejectionReason),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	switch {
	case err == nil:
		return nil
	case isUniqueConstraintError(err):
		return fmt.Errorf("leave request %s: %w", r.ID, generic.ErrDuplicateKey)
	case isForeignKeyError(err):
		return generic.NewNotFound("employee", r.EmployeeID)
	default:
		return fmt.Errorf("create leave request: %w", err)
	}
}

// DecideRequest writes the decision only while the stored row is PENDING.
func (qs queries) DecideRequest(ctx context.Context, r leave.LeaveRequest) error {
	res, err := qs.exec(ctx, `
		UPDATE leave_requests SET
			status = ?,
			alloc_paid = ?, alloc_casual = ?, alloc_sick = ?, alloc_unpaid = ?,
			chargeable_days = ?,
			decided_by = ?, decided_at = ?, rejection_reason = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(r.Status),
		r.Allocations.Paid.String(), r.Allocations.Casual.String(), r.Allocations.Sick.String(), r.Allocations.Unpaid.String(),
		r.ChargeableDays.String(),
		nullString(r.DecidedBy), nullTime(r.DecidedAt), nullString(r.RejectionReason),
		formatTime(r.UpdatedAt),
		r.ID, string(leave.StatusPending))
	if err != nil {
		return fmt.Errorf("decide leave request %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status string
	err = qs.queryRow(ctx, `SELECT status FROM leave_requests WHERE id = ?`, r.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NewNotFound("leave request", r.ID)
	}
	if err != nil {
		return err
	}
	return &generic.StateConflictError{
		Resource: "leave request",
		ID:       r.ID,
		Current:  status,
		Required: string(leave.StatusPending),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func isForeignKeyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") || strings.Contains(msg, "violates foreign key")
}
