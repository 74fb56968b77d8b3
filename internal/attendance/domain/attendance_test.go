package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmployeeID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"pads short id", "42", "00042", true},
		{"trims whitespace", "  317 ", "00317", true},
		{"exact width unchanged", "12345", "12345", true},
		{"longer id passes verbatim", "1234567", "1234567", true},
		{"blank rejected", "   ", "", false},
		{"empty rejected", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEmployeeID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShiftEndWrapsOvernight(t *testing.T) {
	d := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	s := &Shift{DatePeriod: d, In: 20 * time.Hour, Out: 5 * time.Hour}

	assert.Equal(t, d.Add(20*time.Hour), s.Start())
	assert.Equal(t, d.AddDate(0, 0, 1).Add(5*time.Hour), s.End())
}

func TestShiftAdmissionWindow(t *testing.T) {
	d := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	s := &Shift{DatePeriod: d, In: 8 * time.Hour, Out: 17 * time.Hour}

	from, to := s.Window()
	assert.Equal(t, d.Add(4*time.Hour), from)
	assert.Equal(t, d.Add(25*time.Hour), to)

	assert.True(t, s.Admits(from), "window start is inclusive")
	assert.True(t, s.Admits(to), "window end is inclusive")
	assert.False(t, s.Admits(from.Add(-time.Second)))
	assert.False(t, s.Admits(to.Add(time.Second)))
}

func TestShiftMidpoint(t *testing.T) {
	d := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	s := &Shift{DatePeriod: d, In: 8 * time.Hour, Out: 17 * time.Hour}
	assert.Equal(t, d.Add(12*time.Hour+30*time.Minute), s.Midpoint())

	night := &Shift{DatePeriod: d, In: 20 * time.Hour, Out: 5 * time.Hour}
	assert.Equal(t, d.AddDate(0, 0, 1).Add(30*time.Minute), night.Midpoint())
}

func TestZeroStartHoliday(t *testing.T) {
	assert.True(t, (&Shift{Holiday: true, In: 0}).ZeroStartHoliday())
	assert.False(t, (&Shift{Holiday: true, In: 8 * time.Hour}).ZeroStartHoliday())
	assert.False(t, (&Shift{Holiday: false, In: 0}).ZeroStartHoliday())
}

func TestAttendanceRowReference(t *testing.T) {
	stamp := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	in := stamp.Add(9 * time.Hour)

	withIn := &AttendanceRow{DateStamp: stamp, TimeIn: &in}
	assert.Equal(t, in, withIn.Reference())

	withoutIn := &AttendanceRow{DateStamp: stamp}
	assert.Equal(t, stamp, withoutIn.Reference())
}

func TestAttendanceRowAutoCleaned(t *testing.T) {
	marker := AutoCleanup
	other := "192.168.1.10"

	assert.True(t, (&AttendanceRow{IPOut: &marker}).AutoCleaned())
	assert.False(t, (&AttendanceRow{IPOut: &other}).AutoCleaned())
	assert.False(t, (&AttendanceRow{}).AutoCleaned())
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"08:30", 8*time.Hour + 30*time.Minute, false},
		{"00:00", 0, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"17:00:59", 17 * time.Hour, false},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"nonsense", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.raw)
		if tt.wantErr {
			require.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestCombineDateTime(t *testing.T) {
	noon := time.Date(2026, time.March, 2, 13, 45, 0, 0, time.UTC)
	got := CombineDateTime(noon, 17*time.Hour+30*time.Minute)
	assert.Equal(t, time.Date(2026, time.March, 2, 17, 30, 0, 0, time.UTC), got)
}
