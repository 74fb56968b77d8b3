package shift

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
)

type fakePlan struct {
	shifts []*domain.Shift
	ends   map[string]time.Duration
}

func (f *fakePlan) ShiftsFor(_ context.Context, employeeID string, dates []time.Time) ([]*domain.Shift, error) {
	sorted := append([]time.Time(nil), dates...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].After(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	var out []*domain.Shift
	for _, d := range sorted {
		for _, s := range f.shifts {
			if s.EmployeeID == employeeID && s.DatePeriod.Equal(domain.DateOf(d)) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakePlan) ShiftEndTimeFor(_ context.Context, employeeID string, datePeriod time.Time) (*time.Duration, error) {
	if f.ends == nil {
		return nil, nil
	}
	key := employeeID + datePeriod.Format("2006-01-02")
	if d, ok := f.ends[key]; ok {
		return &d, nil
	}
	return nil, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_SameDayShift(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{shifts: []*domain.Shift{
		{EmployeeID: "00042", DatePeriod: d, In: 8 * time.Hour, Out: 17 * time.Hour},
	}}
	r := NewResolver(plan)

	s, err := r.Resolve(context.Background(), "00042", d.Add(7*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, d, s.DatePeriod)
}

func TestResolve_OvernightShiftClaimsAfterMidnight(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{shifts: []*domain.Shift{
		{EmployeeID: "00077", DatePeriod: d, In: 20 * time.Hour, Out: 5 * time.Hour},
	}}
	r := NewResolver(plan)

	// 01:30 the next day is inside yesterday's overnight window.
	s, err := r.Resolve(context.Background(), "00077", date(2026, time.March, 3).Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, d, s.DatePeriod)
}

func TestResolve_TodayPreferredOverYesterday(t *testing.T) {
	yesterday := date(2026, time.March, 2)
	today := date(2026, time.March, 3)
	plan := &fakePlan{shifts: []*domain.Shift{
		{EmployeeID: "00042", DatePeriod: yesterday, In: 20 * time.Hour, Out: 5 * time.Hour},
		{EmployeeID: "00042", DatePeriod: today, In: 8 * time.Hour, Out: 17 * time.Hour},
	}}
	r := NewResolver(plan)

	// 07:00: admitted by both (yesterday's window runs to 13:00, today's
	// starts at 04:00); today's row comes first and wins.
	s, err := r.Resolve(context.Background(), "00042", today.Add(7*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, today, s.DatePeriod)
}

func TestResolve_ZeroStartHolidaySkipped(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{shifts: []*domain.Shift{
		{EmployeeID: "00042", DatePeriod: d, In: 0, Out: 0, Holiday: true},
		{EmployeeID: "00042", DatePeriod: d, In: 8 * time.Hour, Out: 17 * time.Hour},
	}}
	r := NewResolver(plan)

	s, err := r.Resolve(context.Background(), "00042", d.Add(9*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.Holiday)
}

func TestResolve_NoAdmittingShift(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{shifts: []*domain.Shift{
		{EmployeeID: "00042", DatePeriod: d, In: 8 * time.Hour, Out: 17 * time.Hour},
	}}
	r := NewResolver(plan)

	// 02:00 is before the 04:00 admission start.
	s, err := r.Resolve(context.Background(), "00042", d.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSyntheticTimeOut_FromPlan(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{ends: map[string]time.Duration{
		"00042" + d.Format("2006-01-02"): 17 * time.Hour,
	}}
	in := d.Add(8 * time.Hour)
	row := &domain.AttendanceRow{DateStamp: d, EmployeeID: "00042", TimeIn: &in}

	got := SyntheticTimeOut(context.Background(), plan, row)
	assert.Equal(t, d.Add(17*time.Hour), got)
}

func TestSyntheticTimeOut_OvernightWraps(t *testing.T) {
	d := date(2026, time.March, 2)
	plan := &fakePlan{ends: map[string]time.Duration{
		"00077" + d.Format("2006-01-02"): 5 * time.Hour,
	}}
	in := d.Add(20 * time.Hour)
	row := &domain.AttendanceRow{DateStamp: d, EmployeeID: "00077", TimeIn: &in}

	// 05:00 on the stamp day is before the 20:00 TimeIn, so it advances a day.
	got := SyntheticTimeOut(context.Background(), plan, row)
	assert.Equal(t, date(2026, time.March, 3).Add(5*time.Hour), got)
}

func TestSyntheticTimeOut_NoPlanFallsBackToReference(t *testing.T) {
	d := date(2026, time.March, 2)
	in := d.Add(9 * time.Hour)
	row := &domain.AttendanceRow{DateStamp: d, EmployeeID: "00099", TimeIn: &in}

	got := SyntheticTimeOut(context.Background(), &fakePlan{}, row)
	assert.Equal(t, in, got)
}
