package mongo

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// newLiveStore connects to MONGO_URI on a throwaway database. Tests using it
// are skipped when no server is configured.
func newLiveStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "leave_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := Connect(ctx, uri, name)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func seedLive(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.SaveEmployee(context.Background(), leave.Employee{
		ID:         "emp-1",
		CompanyID:  "acme",
		Code:       "E-001",
		Name:       "Ann",
		ApproverID: "mgr-1",
		Ledger: leave.EmployeeLedger{
			TotalLeaveAvailable:  generic.Days(8),
			LastAccruedYearMonth: "2025-03",
		},
		CreatedAt: time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC),
	}))
}

func TestLive_UpdateLedgerCompareAndSwap(t *testing.T) {
	// GIVEN: an employee ledger at version 0
	// WHEN: two writers both read version 0 and write
	// THEN: the first wins, the second gets ErrConcurrentModification
	s := newLiveStore(t)
	seedLive(t, s)
	ctx := context.Background()

	e, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), e.Ledger.Version)

	first := e.Ledger
	first.TotalLeaveAvailable = generic.Days(5)
	require.NoError(t, s.UpdateLedger(ctx, "emp-1", 0, first))

	second := e.Ledger
	second.TotalLeaveAvailable = generic.Days(1)
	err = s.UpdateLedger(ctx, "emp-1", 0, second)
	require.Error(t, err)
	assert.True(t, generic.IsRetryable(err))
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	got, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Ledger.Version)
	assert.True(t, got.Ledger.TotalLeaveAvailable.Equal(generic.Days(5)))

	// A missing employee is not a lost race.
	err = s.UpdateLedger(ctx, "ghost", 0, second)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.False(t, generic.IsRetryable(err))
}

func TestLive_DecideRequestOnlyWhilePending(t *testing.T) {
	s := newLiveStore(t)
	seedLive(t, s)
	ctx := context.Background()

	created := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	req := leave.LeaveRequest{
		ID:         "req-1",
		CompanyID:  "acme",
		EmployeeID: "emp-1",
		ApproverID: "mgr-1",
		StartDate:  generic.MustParseDate("2025-03-10"),
		EndDate:    generic.MustParseDate("2025-03-11"),
		Type:       leave.Paid,
		Source:     leave.SourceInteractive,
		Status:     leave.StatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	require.NoError(t, s.CreateRequest(ctx, req))

	approved := req
	approved.Status = leave.StatusApproved
	approved.Allocations = leave.Buckets{Paid: generic.Days(2)}
	approved.ChargeableDays = generic.Days(2)
	require.NoError(t, s.DecideRequest(ctx, approved))

	// The second decision matches no PENDING document.
	rejected := req
	rejected.Status = leave.StatusRejected
	err := s.DecideRequest(ctx, rejected)
	var sc *generic.StateConflictError
	require.True(t, errors.As(err, &sc), "got %v", err)
	assert.Equal(t, string(leave.StatusApproved), sc.Current)
	assert.True(t, generic.IsConflict(err))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)

	ghost := req
	ghost.ID = "nope"
	assert.ErrorIs(t, s.DecideRequest(ctx, ghost), generic.ErrNotFound)
}
