package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

func TestCompanyModelRoundTrip(t *testing.T) {
	// GIVEN a company with fractional policy values and two holidays
	created := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	c := leave.Company{
		ID:   "acme",
		Name: "Acme",
		Policy: leave.LeavePolicy{
			TypeCaps:       leave.TypeCaps{Paid: generic.Days(10), Casual: generic.Days(5), Sick: generic.Days(4.5)},
			Sandwich:       leave.SandwichPolicy{Enabled: true, MinDays: 3},
			MonthlyAccrual: generic.Days(1.5),
		},
		BankHolidays: []generic.Date{generic.MustParseDate("2025-04-18"), generic.MustParseDate("2025-12-25")},
		CreatedAt:    created,
		UpdatedAt:    created,
	}

	// WHEN it goes through BSON and back
	raw, err := bson.Marshal(toCompanyModel(c))
	require.NoError(t, err)
	var m companyModel
	require.NoError(t, bson.Unmarshal(raw, &m))
	got, err := fromCompanyModel(m)
	require.NoError(t, err)

	// THEN nothing is lost and quantities keep their decimal form
	assert.Equal(t, "4.5", m.Policy.CapSick)
	assert.True(t, got.Policy.TypeCaps.Sick.Equal(generic.Days(4.5)))
	assert.True(t, got.Policy.MonthlyAccrual.Equal(generic.Days(1.5)))
	assert.Equal(t, c.Policy.Sandwich, got.Policy.Sandwich)
	assert.Equal(t, c.BankHolidays, got.BankHolidays)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestEmployeeModelKeepsLedgerAndLookupKeys(t *testing.T) {
	e := leave.Employee{
		ID:         "alice",
		CompanyID:  "acme",
		Code:       "EMP-001",
		Email:      "Alice@Example.com",
		Name:       "Alice",
		ApproverID: "mgr-1",
		Ledger: leave.EmployeeLedger{
			TotalLeaveAvailable:  generic.Days(-1.5),
			Usage:                leave.Buckets{Paid: generic.Days(3), Unpaid: generic.Days(0.5)},
			Balances:             leave.Buckets{Paid: generic.Days(7), Casual: generic.Days(5)},
			LastAccruedYearMonth: "2025-03",
			Version:              4,
		},
	}

	m := toEmployeeModel(e)
	assert.Equal(t, "emp-001", m.CodeKey)
	assert.Equal(t, "alice@example.com", m.EmailKey)
	assert.Equal(t, int64(4), m.Version)

	got, err := fromEmployeeModel(m)
	require.NoError(t, err)
	assert.Equal(t, "Alice@Example.com", got.Email)
	assert.True(t, got.Ledger.TotalLeaveAvailable.Equal(generic.Days(-1.5)))
	assert.True(t, got.Ledger.Usage.Equal(e.Ledger.Usage))
	assert.True(t, got.Ledger.Balances.Equal(e.Ledger.Balances))
	assert.Equal(t, generic.YearMonth("2025-03"), got.Ledger.LastAccruedYearMonth)
	assert.Equal(t, int64(4), got.Ledger.Version)
}

func TestRequestModelRoundTrip(t *testing.T) {
	decided := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	r := leave.LeaveRequest{
		ID:             "req-1",
		CompanyID:      "acme",
		EmployeeID:     "alice",
		StartDate:      generic.MustParseDate("2025-05-02"),
		EndDate:        generic.MustParseDate("2025-05-06"),
		Type:           leave.Paid,
		FallbackType:   leave.Casual,
		Source:         leave.SourceBackfill,
		Status:         leave.StatusApproved,
		Allocations:    leave.Buckets{Paid: generic.Days(2), Casual: generic.Days(1.5)},
		ChargeableDays: generic.Days(3.5),
		DecidedBy:      "mgr-1",
		DecidedAt:      &decided,
	}

	raw, err := bson.Marshal(toRequestModel(r))
	require.NoError(t, err)
	var m requestModel
	require.NoError(t, bson.Unmarshal(raw, &m))

	got, err := fromRequestModel(m)
	require.NoError(t, err)
	assert.Equal(t, r.Period(), got.Period())
	assert.Equal(t, leave.Casual, got.FallbackType)
	assert.Equal(t, leave.SourceBackfill, got.Source)
	assert.True(t, got.Allocations.Equal(r.Allocations))
	assert.True(t, got.ChargeableDays.Equal(generic.Days(3.5)))
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))
}

func TestDecodeReportsFirstBadField(t *testing.T) {
	m := requestModel{
		ID:             "req-bad",
		StartDate:      "2025-13-01",
		EndDate:        "2025-05-06",
		ChargeableDays: "lots",
	}

	_, err := fromRequestModel(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "req-bad")
	assert.Contains(t, err.Error(), "start_date")
}

func TestEmptyDecimalDecodesAsZero(t *testing.T) {
	var dec decoder
	assert.True(t, dec.decimal("x", "").IsZero())
	assert.NoError(t, dec.err)
}

func TestEmployeeRefFilter(t *testing.T) {
	f := employeeRefFilter("acme", "  EMP-001 ")

	assert.Equal(t, "acme", f["company_id"])
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.A{
		bson.M{"_id": "  EMP-001 "},
		bson.M{"code_key": "emp-001"},
		bson.M{"email_key": "emp-001"},
	}, or)
}
