package supervisor

import (
	"time"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/clock"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/device/zkteco"
)

// maxFutureSkew bounds how far ahead of the wall clock a device timestamp
// may sit before it is treated as garbage.
const maxFutureSkew = 24 * time.Hour

// earliestPlausible rejects timestamps from terminals whose RTC reset.
var earliestPlausible = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// normalize converts a raw terminal record into a domain punch: the
// employee id is zero-padded to canonical width, the deployment timezone
// offset is applied, and implausible timestamps fall back to the current
// wall clock. Records with a blank user id are dropped.
func normalize(rec zkteco.Record, deviceIP string, clk clock.Clock) (domain.Punch, bool) {
	employeeID, ok := domain.NormalizeEmployeeID(rec.UserID)
	if !ok {
		return domain.Punch{}, false
	}

	instant := clk.ApplyOffset(rec.Timestamp)
	now := clk.Now()
	if instant.Before(earliestPlausible) || instant.After(now.Add(maxFutureSkew)) {
		instant = now
	}

	return domain.Punch{
		EmployeeID: employeeID,
		DeviceIP:   deviceIP,
		Instant:    instant,
		Status:     rec.Status,
		Kind:       rec.Punch,
	}, true
}
