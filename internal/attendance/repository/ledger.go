// Package repository persists attendance rows in TimeAttandanceLog and
// reads the shift plan from the VListPeriodEmployee view.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/database"
)

// ErrRowNotFound is returned when a mutation matched no ledger row.
var ErrRowNotFound = errors.New("attendance row not found")

const (
	ledgerTable = "[EmpBook_db].[dbo].[TimeAttandanceLog]"
	planView    = "[db_pfpdashboard].[dbo].[VListPeriodEmployee]"
)

// LedgerRepository handles attendance ledger persistence. Reads use NOLOCK
// hints; consistency is guaranteed by the engine's in-process per-employee
// serialization, not by SQL-side locking.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LatestRowFor returns the employee's newest row by (DateTimeStamp, Id)
// descending, or nil when the employee has no rows.
func (r *LedgerRepository) LatestRowFor(ctx context.Context, employeeID string) (*domain.AttendanceRow, error) {
	var row domain.AttendanceRow

	query := `
		SELECT TOP 1 [Id], [DateTimeStamp], [EmpId], [TimeIn], [TimeOut], [IPStampIn], [IPStampOut]
		FROM ` + ledgerTable + ` WITH (NOLOCK)
		WHERE [EmpId] = @p1
		ORDER BY [DateTimeStamp] DESC, [Id] DESC
	`
	err := r.db.GetContext(ctx, &row, query, employeeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.ClassifyStoreError(err, "failed to load latest row")
	}

	return &row, nil
}

// LatestRowOn returns the employee's newest row on a given ledger day, or
// nil when none exists.
func (r *LedgerRepository) LatestRowOn(ctx context.Context, employeeID string, dateStamp time.Time) (*domain.AttendanceRow, error) {
	var row domain.AttendanceRow

	query := `
		SELECT TOP 1 [Id], [DateTimeStamp], [EmpId], [TimeIn], [TimeOut], [IPStampIn], [IPStampOut]
		FROM ` + ledgerTable + ` WITH (NOLOCK)
		WHERE [EmpId] = @p1 AND CAST([DateTimeStamp] AS DATE) = CAST(@p2 AS DATE)
		ORDER BY [Id] DESC
	`
	err := r.db.GetContext(ctx, &row, query, employeeID, dateStamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.ClassifyStoreError(err, "failed to load row for date")
	}

	return &row, nil
}

// FindOpenRowsOlderThan returns every open row whose reference instant
// (TimeIn, else DateTimeStamp) is before the threshold. Janitor only.
func (r *LedgerRepository) FindOpenRowsOlderThan(ctx context.Context, threshold time.Time) ([]*domain.AttendanceRow, error) {
	var rows []*domain.AttendanceRow

	query := `
		SELECT [Id], [DateTimeStamp], [EmpId], [TimeIn], [TimeOut], [IPStampIn], [IPStampOut]
		FROM ` + ledgerTable + ` WITH (NOLOCK)
		WHERE [TimeOut] IS NULL
		  AND (
		    ([TimeIn] IS NOT NULL AND [TimeIn] < @p1)
		    OR
		    ([TimeIn] IS NULL AND [DateTimeStamp] < @p2)
		  )
	`
	err := r.db.SelectContext(ctx, &rows, query, threshold, threshold)
	if err != nil {
		return nil, database.ClassifyStoreError(err, "failed to load open rows")
	}

	return rows, nil
}

// InsertOpen creates a new open interval (TimeOut left null).
func (r *LedgerRepository) InsertOpen(ctx context.Context, dateStamp time.Time, employeeID, ipIn string, timeIn time.Time) error {
	query := `
		INSERT INTO ` + ledgerTable + ` ([DateTimeStamp], [EmpId], [TimeIn], [IPStampIn])
		VALUES (@p1, @p2, @p3, @p4)
	`
	if _, err := r.db.ExecContext(ctx, query, dateStamp, employeeID, timeIn, ipIn); err != nil {
		return database.ClassifyStoreError(err, "failed to insert open row")
	}
	return nil
}

// InsertOutOnly creates a row holding only an out-punch (TimeIn null),
// used when the first scan of a shift lands past its midpoint.
func (r *LedgerRepository) InsertOutOnly(ctx context.Context, dateStamp time.Time, employeeID, ipOut string, timeOut time.Time) error {
	query := `
		INSERT INTO ` + ledgerTable + ` ([DateTimeStamp], [EmpId], [TimeOut], [IPStampOut])
		VALUES (@p1, @p2, @p3, @p4)
	`
	if _, err := r.db.ExecContext(ctx, query, dateStamp, employeeID, timeOut, ipOut); err != nil {
		return database.ClassifyStoreError(err, "failed to insert out-only row")
	}
	return nil
}

// UpdateClose sets or overwrites the TimeOut side of a row.
func (r *LedgerRepository) UpdateClose(ctx context.Context, id int64, timeOut time.Time, ipOut string) error {
	query := `
		UPDATE ` + ledgerTable + `
		SET [TimeOut] = @p1, [IPStampOut] = @p2
		WHERE [Id] = @p3
	`
	result, err := r.db.ExecContext(ctx, query, timeOut, ipOut, id)
	if err != nil {
		return database.ClassifyStoreError(err, "failed to close row")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}

	return nil
}

// planRow is the scan shape for VListPeriodEmployee reads. Times come back
// as HH:MM strings so the TIME column type never matters.
type planRow struct {
	DatePeriod time.Time      `db:"DatePeriod"`
	InTmp      sql.NullString `db:"InTmp"`
	OutTmp     sql.NullString `db:"OutTmp"`
	HoliDay    sql.NullInt64  `db:"HoliDay"`
}

// ShiftEndTimeFor returns the planned OutTmp for an employee on a day, or
// nil when no usable plan row exists. Holiday rows with a 00:00 start are
// skipped so their placeholder times never become a synthetic TimeOut.
func (r *LedgerRepository) ShiftEndTimeFor(ctx context.Context, employeeID string, datePeriod time.Time) (*time.Duration, error) {
	var rows []planRow

	query := `
		SELECT [DatePeriod],
		       CONVERT(VARCHAR(5), [InTmp], 108) AS [InTmp],
		       CONVERT(VARCHAR(5), [OutTmp], 108) AS [OutTmp],
		       [HoliDay]
		FROM ` + planView + ` WITH (NOLOCK)
		WHERE [EmpId] = @p1 AND [DatePeriod] = CAST(@p2 AS DATE)
		ORDER BY [HoliDay] ASC, [InTmp] DESC
	`
	err := r.db.SelectContext(ctx, &rows, query, employeeID, datePeriod)
	if err != nil {
		return nil, database.ClassifyStoreError(err, "failed to load shift plan")
	}

	for _, row := range rows {
		shift, ok := toShift(employeeID, row)
		if !ok || shift.ZeroStartHoliday() {
			continue
		}
		out := shift.Out
		return &out, nil
	}

	return nil, nil
}

// ShiftsFor returns all plan rows for the candidate dates, most recent
// date first. Rows with missing or unparseable times are dropped.
func (r *LedgerRepository) ShiftsFor(ctx context.Context, employeeID string, dates []time.Time) ([]*domain.Shift, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(dates))
	args := make([]interface{}, 0, len(dates)+1)
	args = append(args, employeeID)
	for i, d := range dates {
		placeholders[i] = fmt.Sprintf("CAST(@p%d AS DATE)", i+2)
		args = append(args, d)
	}

	query := `
		SELECT [DatePeriod],
		       CONVERT(VARCHAR(5), [InTmp], 108) AS [InTmp],
		       CONVERT(VARCHAR(5), [OutTmp], 108) AS [OutTmp],
		       [HoliDay]
		FROM ` + planView + ` WITH (NOLOCK)
		WHERE [EmpId] = @p1 AND [DatePeriod] IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY [DatePeriod] DESC, [HoliDay] ASC, [InTmp] DESC
	`

	var rows []planRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.ClassifyStoreError(err, "failed to load shift plan")
	}

	shifts := make([]*domain.Shift, 0, len(rows))
	for _, row := range rows {
		if shift, ok := toShift(employeeID, row); ok {
			shifts = append(shifts, shift)
		}
	}

	return shifts, nil
}

func toShift(employeeID string, row planRow) (*domain.Shift, bool) {
	if !row.InTmp.Valid || !row.OutTmp.Valid {
		return nil, false
	}

	in, err := domain.ParseTimeOfDay(row.InTmp.String)
	if err != nil {
		return nil, false
	}
	out, err := domain.ParseTimeOfDay(row.OutTmp.String)
	if err != nil {
		return nil, false
	}

	return &domain.Shift{
		EmployeeID: employeeID,
		DatePeriod: domain.DateOf(row.DatePeriod),
		In:         in,
		Out:        out,
		Holiday:    row.HoliDay.Valid && row.HoliDay.Int64 == 1,
	}, true
}
