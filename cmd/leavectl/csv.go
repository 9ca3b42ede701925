package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/leave-ledger/leave"
)

// Backfill CSV columns. The header row is required; column order is free and
// unknown columns are ignored.
const (
	colEmployee = "employee_ref"
	colType     = "type"
	colFallback = "fallback_type"
	colStart    = "start_date"
	colEnd      = "end_date"
	colReason   = "reason"
	colApprove  = "approve"
)

var requiredColumns = []string{colEmployee, colType, colStart, colEnd}

// parseBackfillCSV reads backfill rows. Field-level validation happens in
// leave.Service.Backfill so a bad row is reported alongside the good ones;
// only structural problems fail the whole file.
func parseBackfillCSV(r io.Reader) ([]leave.BackfillRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty CSV: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []leave.BackfillRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		approve := false
		if v := field(rec, colApprove); v != "" {
			approve, err = strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: approve: %q is not a boolean", line, v)
			}
		}
		rows = append(rows, leave.BackfillRow{
			EmployeeRef:  field(rec, colEmployee),
			Type:         field(rec, colType),
			FallbackType: field(rec, colFallback),
			StartDate:    field(rec, colStart),
			EndDate:      field(rec, colEnd),
			Reason:       field(rec, colReason),
			Approve:      approve,
		})
	}
	return rows, nil
}
