// Package shift resolves the planned work window covering a punch, and
// computes synthetic close instants for abandoned intervals.
package shift

import (
	"context"
	"time"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
)

// PlanReader is the read-only slice of the ledger store the resolver
// needs.
type PlanReader interface {
	ShiftsFor(ctx context.Context, employeeID string, dates []time.Time) ([]*domain.Shift, error)
	ShiftEndTimeFor(ctx context.Context, employeeID string, datePeriod time.Time) (*time.Duration, error)
}

// Resolver finds the shift whose admission window covers an instant.
type Resolver struct {
	plan PlanReader
}

// NewResolver creates a new shift resolver
func NewResolver(plan PlanReader) *Resolver {
	return &Resolver{plan: plan}
}

// Resolve returns the covering shift for (employee, instant), or nil when
// no planned shift admits the instant. Candidate dates are the instant's
// date and the previous day so an overnight shift still claims punches
// after midnight. Plan rows come back most recent date first, which makes
// a punch near midnight prefer yesterday's overnight shift only when that
// window still covers it.
func (r *Resolver) Resolve(ctx context.Context, employeeID string, instant time.Time) (*domain.Shift, error) {
	day := domain.DateOf(instant)
	dates := []time.Time{day, day.AddDate(0, 0, -1)}

	shifts, err := r.plan.ShiftsFor(ctx, employeeID, dates)
	if err != nil {
		return nil, err
	}

	for _, s := range shifts {
		if s.ZeroStartHoliday() {
			continue
		}
		if s.Admits(instant) {
			return s, nil
		}
	}

	return nil, nil
}

// SyntheticTimeOut computes the close instant for an abandoned open row.
// When the plan has an OutTmp for the row's day it is combined with the
// date stamp, advanced by 24h if that lands at or before TimeIn
// (overnight). With no plan the row's reference instant is reused, which
// yields a zero-length interval rather than an invented duration.
func SyntheticTimeOut(ctx context.Context, plan PlanReader, row *domain.AttendanceRow) time.Time {
	out, err := plan.ShiftEndTimeFor(ctx, row.EmployeeID, domain.DateOf(row.DateStamp))
	if err != nil || out == nil {
		return row.Reference()
	}

	candidate := domain.CombineDateTime(row.DateStamp, *out)
	if row.TimeIn != nil && !candidate.After(*row.TimeIn) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}
