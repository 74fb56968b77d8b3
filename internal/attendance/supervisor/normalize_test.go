package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/clock"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/device/zkteco"
)

func TestNormalize_PadsEmployeeID(t *testing.T) {
	clk := &clock.Fixed{Instant: time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)}
	rec := zkteco.Record{UserID: "42", Timestamp: time.Date(2026, time.March, 2, 7, 55, 0, 0, time.UTC), Status: 1}

	punch, ok := normalize(rec, "192.168.3.246", clk)
	require.True(t, ok)
	assert.Equal(t, "00042", punch.EmployeeID)
	assert.Equal(t, "192.168.3.246", punch.DeviceIP)
	assert.Equal(t, rec.Timestamp, punch.Instant)
	assert.Equal(t, byte(1), punch.Status)
}

func TestNormalize_BlankUserIDDropped(t *testing.T) {
	clk := &clock.Fixed{Instant: time.Now()}
	_, ok := normalize(zkteco.Record{UserID: "   ", Timestamp: time.Now()}, "10.0.0.1", clk)
	assert.False(t, ok)
}

func TestNormalize_AppliesTZOffset(t *testing.T) {
	clk := &clock.Fixed{Instant: time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC), OffsetHours: 7}
	rec := zkteco.Record{UserID: "42", Timestamp: time.Date(2026, time.March, 2, 0, 55, 0, 0, time.UTC)}

	punch, ok := normalize(rec, "10.0.0.1", clk)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.March, 2, 7, 55, 0, 0, time.UTC), punch.Instant)
}

func TestNormalize_ImplausibleTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	clk := &clock.Fixed{Instant: now}

	// RTC reset: terminal reports the year 2000.
	old := zkteco.Record{UserID: "42", Timestamp: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)}
	punch, ok := normalize(old, "10.0.0.1", clk)
	require.True(t, ok)
	assert.Equal(t, now, punch.Instant)

	// Timestamp far in the future.
	future := zkteco.Record{UserID: "42", Timestamp: now.Add(48 * time.Hour)}
	punch, ok = normalize(future, "10.0.0.1", clk)
	require.True(t, ok)
	assert.Equal(t, now, punch.Instant)
}
