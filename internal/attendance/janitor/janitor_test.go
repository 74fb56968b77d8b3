package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/clock"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
)

type fakeStore struct {
	rows      []*domain.AttendanceRow
	ends      map[string]time.Duration
	threshold time.Time
	closeErr  map[int64]error
	closed    map[int64]time.Time
}

func (f *fakeStore) FindOpenRowsOlderThan(_ context.Context, threshold time.Time) ([]*domain.AttendanceRow, error) {
	f.threshold = threshold
	var out []*domain.AttendanceRow
	for _, r := range f.rows {
		if r.Open() && r.Reference().Before(threshold) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateClose(_ context.Context, id int64, timeOut time.Time, ipOut string) error {
	if err := f.closeErr[id]; err != nil {
		return err
	}
	if f.closed == nil {
		f.closed = make(map[int64]time.Time)
	}
	f.closed[id] = timeOut
	for _, r := range f.rows {
		if r.ID == id {
			out, ip := timeOut, ipOut
			r.TimeOut, r.IPOut = &out, &ip
		}
	}
	return nil
}

func (f *fakeStore) ShiftsFor(_ context.Context, _ string, _ []time.Time) ([]*domain.Shift, error) {
	return nil, nil
}

func (f *fakeStore) ShiftEndTimeFor(_ context.Context, employeeID string, datePeriod time.Time) (*time.Duration, error) {
	if d, ok := f.ends[employeeID+datePeriod.Format("2006-01-02")]; ok {
		return &d, nil
	}
	return nil, nil
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func openRow(id int64, emp string, stamp, in time.Time) *domain.AttendanceRow {
	return &domain.AttendanceRow{ID: id, DateStamp: stamp, EmployeeID: emp, TimeIn: &in}
}

func testJanitor(store *fakeStore, now time.Time) *Janitor {
	factory := func(context.Context) (Store, func(), error) {
		return store, func() {}, nil
	}
	return New(factory, &clock.Fixed{Instant: now}, 16, 4*time.Hour, nil, logger.New("test", "disabled", false))
}

func TestSweepClosesOldOpenRows(t *testing.T) {
	now := day(3).Add(12 * time.Hour)
	store := &fakeStore{
		rows: []*domain.AttendanceRow{
			// 28h old, abandoned.
			openRow(1, "00042", day(2), day(2).Add(8*time.Hour)),
			// 4h old, current shift, untouched.
			openRow(2, "00317", day(3), day(3).Add(8*time.Hour)),
		},
		ends: map[string]time.Duration{
			"00042" + day(2).Format("2006-01-02"): 17 * time.Hour,
		},
	}
	j := testJanitor(store, now)

	closed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	// Threshold is now minus 16 hours.
	assert.Equal(t, day(2).Add(20*time.Hour), store.threshold)

	// Synthetic close from the planned shift end, marked as auto-cleanup.
	require.NotNil(t, store.rows[0].TimeOut)
	assert.Equal(t, day(2).Add(17*time.Hour), *store.rows[0].TimeOut)
	assert.Equal(t, domain.AutoCleanup, *store.rows[0].IPOut)

	assert.True(t, store.rows[1].Open())
}

func TestSweepFallsBackToReferenceWithoutPlan(t *testing.T) {
	now := day(3).Add(12 * time.Hour)
	in := day(2).Add(9 * time.Hour)
	store := &fakeStore{rows: []*domain.AttendanceRow{openRow(1, "00099", day(2), in)}}
	j := testJanitor(store, now)

	closed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, in, *store.rows[0].TimeOut)
}

func TestSweepContinuesPastRowFailure(t *testing.T) {
	now := day(3).Add(12 * time.Hour)
	store := &fakeStore{
		rows: []*domain.AttendanceRow{
			openRow(1, "00042", day(2), day(2).Add(8*time.Hour)),
			openRow(2, "00317", day(2), day(2).Add(8*time.Hour)),
		},
		closeErr: map[int64]error{1: assert.AnError},
	}
	j := testJanitor(store, now)

	closed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.True(t, store.rows[0].Open())
	assert.False(t, store.rows[1].Open())
}

func TestSweepIgnoresClosedRows(t *testing.T) {
	now := day(3).Add(12 * time.Hour)
	out := day(2).Add(17 * time.Hour)
	in := day(2).Add(8 * time.Hour)
	store := &fakeStore{rows: []*domain.AttendanceRow{
		{ID: 1, DateStamp: day(2), EmployeeID: "00042", TimeIn: &in, TimeOut: &out},
	}}
	j := testJanitor(store, now)

	closed, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
	assert.Equal(t, out, *store.rows[0].TimeOut)
}

func TestStatusTracksSweeps(t *testing.T) {
	now := day(3).Add(12 * time.Hour)
	store := &fakeStore{rows: []*domain.AttendanceRow{
		openRow(1, "00042", day(2), day(2).Add(8*time.Hour)),
	}}
	j := testJanitor(store, now)

	j.sweepAndLog(context.Background())

	st := j.Status()
	assert.Equal(t, "0 0,4,8,12,16,20 * * *", st.Schedule)
	assert.Equal(t, uint64(1), st.Sweeps)
	assert.Equal(t, 1, st.LastClosed)
	assert.Equal(t, now, st.LastSweep)
	assert.Empty(t, st.LastError)
}

func TestScheduleSpec(t *testing.T) {
	assert.Equal(t, "0 0,4,8,12,16,20 * * *", scheduleSpec(4*time.Hour))
	assert.Equal(t, "0 0,6,12,18 * * *", scheduleSpec(6*time.Hour))
	assert.Equal(t, "0 0 * * *", scheduleSpec(24*time.Hour))
	assert.Equal(t, "@every 1h30m0s", scheduleSpec(90*time.Minute))
}
