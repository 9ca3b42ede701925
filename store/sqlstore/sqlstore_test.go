package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/sqlstore"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func d(v float64) decimal.Decimal { return generic.Days(v) }

func date(s string) generic.Date { return generic.MustParseDate(s) }

var created = time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *sqlstore.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveCompany(ctx, leave.Company{
		ID:   "acme",
		Name: "Acme",
		Policy: leave.LeavePolicy{
			TypeCaps:       leave.TypeCaps{Paid: d(10), Casual: d(5), Sick: d(5)},
			Sandwich:       leave.SandwichPolicy{Enabled: true, MinDays: 3},
			MonthlyAccrual: d(1.5),
		},
		BankHolidays: []generic.Date{date("2025-12-25"), date("2025-01-01")},
		CreatedAt:    created,
		UpdatedAt:    created,
	}))
	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{
		ID:         "emp-1",
		CompanyID:  "acme",
		Code:       "E-001",
		Email:      "Ann@Acme.test",
		Name:       "Ann",
		ApproverID: "mgr-1",
		Ledger: leave.EmployeeLedger{
			TotalLeaveAvailable:  d(8),
			Usage:                leave.Buckets{Paid: d(3)},
			Balances:             leave.Buckets{Paid: d(7), Casual: d(5), Sick: d(5)},
			LastAccruedYearMonth: "2025-03",
		},
		CreatedAt: created,
	}))
}

func pendingRequest(id string) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:         id,
		CompanyID:  "acme",
		EmployeeID: "emp-1",
		ApproverID: "mgr-1",
		StartDate:  date("2025-03-10"),
		EndDate:    date("2025-03-14"),
		Type:       leave.Paid,
		Source:     leave.SourceInteractive,
		Status:     leave.StatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// =============================================================================
// COMPANIES & OVERRIDES
// =============================================================================

func TestCompany_RoundTripAndUpdate(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	c, err := store.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)
	assert.True(t, c.Policy.TypeCaps.Paid.Equal(d(10)))
	assert.True(t, c.Policy.MonthlyAccrual.Equal(d(1.5)))
	assert.Equal(t, leave.SandwichPolicy{Enabled: true, MinDays: 3}, c.Policy.Sandwich)
	assert.Equal(t, []generic.Date{date("2025-12-25"), date("2025-01-01")}, c.BankHolidays)
	assert.Equal(t, created, c.CreatedAt)

	c.Name = "Acme Corp"
	c.Policy.Sandwich.Enabled = false
	require.NoError(t, store.SaveCompany(ctx, c))

	updated, err := store.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.False(t, updated.Policy.Sandwich.Enabled)

	_, err = store.GetCompany(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestDayOverrides_UpsertListDelete(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	for _, o := range []leave.DayOverride{
		{ID: "o1", CompanyID: "acme", Date: date("2025-03-12"), Kind: leave.OverrideHoliday, CreatedAt: created},
		{ID: "o2", CompanyID: "acme", Date: date("2025-03-12"), Kind: leave.OverrideHalfDay, Note: "offsite", CreatedAt: created},
		{ID: "o3", CompanyID: "acme", Date: date("2025-03-01"), Kind: leave.OverrideWorking, CreatedAt: created},
		{ID: "o4", CompanyID: "acme", Date: date("2025-04-01"), Kind: leave.OverrideHoliday, CreatedAt: created},
	} {
		require.NoError(t, store.UpsertDayOverride(ctx, o))
	}

	list, err := store.ListDayOverrides(ctx, "acme", generic.Period{Start: date("2025-03-01"), End: date("2025-03-31")})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, date("2025-03-01"), list[0].Date)
	assert.Equal(t, leave.OverrideHalfDay, list[1].Kind)
	assert.Equal(t, "offsite", list[1].Note)
	assert.Equal(t, "o1", list[1].ID, "upsert keeps the original id")

	require.NoError(t, store.DeleteDayOverride(ctx, "acme", date("2025-03-12")))
	assert.ErrorIs(t, store.DeleteDayOverride(ctx, "acme", date("2025-03-12")), generic.ErrNotFound)
}

// =============================================================================
// EMPLOYEES & LEDGER
// =============================================================================

func TestEmployee_FindByReference(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	for _, ref := range []string{"emp-1", "e-001", "ann@acme.test"} {
		e, err := store.FindEmployee(ctx, "acme", ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "emp-1", e.ID)
	}

	_, err := store.FindEmployee(ctx, "other", "emp-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	all, err := store.ListEmployees(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEmployee_SaveDoesNotOverwriteLedger(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	e, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	e.Name = "Ann B."
	e.Ledger.TotalLeaveAvailable = d(100)
	require.NoError(t, store.SaveEmployee(ctx, e))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", got.Name)
	assert.True(t, got.Ledger.TotalLeaveAvailable.Equal(d(8)))
}

func TestUpdateLedger_CompareAndSwap(t *testing.T) {
	// GIVEN: an employee ledger at version 0
	// WHEN: two writers both read version 0 and write
	// THEN: the first wins, the second gets ErrConcurrentModification
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	e, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), e.Ledger.Version)

	first := e.Ledger
	first.TotalLeaveAvailable = d(5)
	first.LastAccruedYearMonth = "2025-04"
	require.NoError(t, store.UpdateLedger(ctx, "emp-1", 0, first))

	second := e.Ledger
	second.TotalLeaveAvailable = d(1)
	err = store.UpdateLedger(ctx, "emp-1", 0, second)
	require.Error(t, err)
	assert.True(t, generic.IsRetryable(err))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Ledger.Version)
	assert.True(t, got.Ledger.TotalLeaveAvailable.Equal(d(5)))
	assert.Equal(t, generic.YearMonth("2025-04"), got.Ledger.LastAccruedYearMonth)

	err = store.UpdateLedger(ctx, "ghost", 0, second)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestRequest_CreateAndDecideOnce(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	req := pendingRequest("req-1")
	req.FallbackType = leave.Sick
	require.NoError(t, store.CreateRequest(ctx, req))
	assert.ErrorIs(t, store.CreateRequest(ctx, req), generic.ErrDuplicateKey)

	decidedAt := created.Add(time.Hour)
	approved := req
	approved.Status = leave.StatusApproved
	approved.Allocations = leave.Buckets{Paid: d(4), Unpaid: d(1)}
	approved.ChargeableDays = d(5)
	approved.DecidedBy = "mgr-1"
	approved.DecidedAt = &decidedAt
	require.NoError(t, store.DecideRequest(ctx, approved))

	got, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, leave.Sick, got.FallbackType)
	assert.True(t, got.Allocations.Equal(approved.Allocations))
	assert.True(t, got.ChargeableDays.Equal(d(5)))
	require.NotNil(t, got.DecidedAt)
	assert.Equal(t, decidedAt, *got.DecidedAt)
	assert.Equal(t, date("2025-03-10"), got.StartDate)

	rejected := req
	rejected.Status = leave.StatusRejected
	err = store.DecideRequest(ctx, rejected)
	var sc *generic.StateConflictError
	require.True(t, errors.As(err, &sc))
	assert.Equal(t, string(leave.StatusApproved), sc.Current)

	_, err = store.GetRequest(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestRequest_UnknownEmployee(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	req := pendingRequest("req-x")
	req.EmployeeID = "ghost"
	assert.ErrorIs(t, store.CreateRequest(context.Background(), req), generic.ErrNotFound)
}

func TestWithTx_RollsBackEverything(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx leave.Store) error {
		if err := tx.CreateRequest(ctx, pendingRequest("req-tx")); err != nil {
			return err
		}
		e, err := tx.GetEmployee(ctx, "emp-1")
		if err != nil {
			return err
		}
		next := e.Ledger
		next.TotalLeaveAvailable = d(0)
		if err := tx.UpdateLedger(ctx, "emp-1", e.Ledger.Version, next); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetRequest(ctx, "req-tx")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	e, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, e.Ledger.TotalLeaveAvailable.Equal(d(8)))
	assert.Equal(t, int64(0), e.Ledger.Version)
}

// =============================================================================
// END TO END THROUGH THE SERVICE
// =============================================================================

func TestService_ApproveOnSQLite(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	svc := leave.NewService(store)

	req, err := svc.CreateRequest(ctx, leave.CreateRequestInput{
		EmployeeID:   "emp-1",
		Type:         "paid",
		FallbackType: "casual",
		StartDate:    date("2025-05-02"),
		EndDate:      date("2025-05-06"),
	}, leave.Actor{ID: "emp-1", CompanyID: "acme"})
	require.NoError(t, err)

	ledger, err := svc.Approve(ctx, req.ID, leave.Actor{ID: "mgr-1", CompanyID: "acme"})
	require.NoError(t, err)

	// Fri 2 - Tue 6 May: 5 calendar days > sandwich minimum 3, weekend charged.
	// April and May accrue 3 days first: 8 + 3 - 5 = 6.
	assert.True(t, ledger.TotalLeaveAvailable.Equal(d(6)), "pool %s", ledger.TotalLeaveAvailable)
	assert.True(t, ledger.Usage.Paid.Equal(d(8)))
	assert.Equal(t, generic.YearMonth("2025-05"), ledger.LastAccruedYearMonth)
	assert.Equal(t, int64(2), ledger.Version)

	_, err = svc.Approve(ctx, req.ID, leave.Actor{ID: "mgr-1", CompanyID: "acme"})
	assert.ErrorIs(t, err, generic.ErrConflict)
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]sqlstore.Dialect{
		"sqlite":   sqlstore.DialectSQLite,
		"sqlite3":  sqlstore.DialectSQLite,
		"postgres": sqlstore.DialectPostgres,
		"PGX":      sqlstore.DialectPostgres,
	} {
		got, err := sqlstore.ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := sqlstore.ParseDialect("oracle")
	assert.Error(t, err)
}
