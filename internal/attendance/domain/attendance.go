// Package domain holds the attendance value types shared by the
// reconciliation engine, the repositories and the janitor.
package domain

import (
	"strings"
	"time"
)

// AutoCleanup is the sentinel written to IPStampOut when a TimeOut was
// synthesized rather than observed. Downstream consumers key off it.
const AutoCleanup = "AUTO_CLEANUP"

// EmployeeIDWidth is the canonical zero-padded width of employee ids.
const EmployeeIDWidth = 5

// Engine parameters. Fixed by design, not per-deployment.
const (
	// DuplicateWindow: a second punch this soon after an open TimeIn is a
	// terminal double-read and is discarded.
	DuplicateWindow = time.Minute

	// AmendWindow: an out-punch this soon after a recorded TimeOut
	// overwrites it.
	AmendWindow = time.Hour

	// MaxOpenAge: an open row older than this cannot be closed by a live
	// punch; the punch opens a new interval instead.
	MaxOpenAge = 16 * time.Hour

	// StaleShiftAge: with no planned shift for the incoming punch, a prior
	// open row older than this is auto-closed before processing.
	StaleShiftAge = 20 * time.Hour

	// AdmissionLead and AdmissionLag bound the shift admission window
	// [start-lead, end+lag].
	AdmissionLead = 4 * time.Hour
	AdmissionLag  = 8 * time.Hour
)

// Punch is a single normalized attendance event from a terminal.
type Punch struct {
	EmployeeID string
	DeviceIP   string
	Instant    time.Time

	// Status and Kind are pass-through terminal fields, unused by
	// reconciliation.
	Status byte
	Kind   byte
}

// AttendanceRow is one ledger entry in TimeAttandanceLog. TimeIn and
// TimeOut are nullable: an open interval has TimeOut unset, an out-only
// row has TimeIn unset.
type AttendanceRow struct {
	ID         int64      `db:"Id"`
	DateStamp  time.Time  `db:"DateTimeStamp"`
	EmployeeID string     `db:"EmpId"`
	TimeIn     *time.Time `db:"TimeIn"`
	TimeOut    *time.Time `db:"TimeOut"`
	IPIn       *string    `db:"IPStampIn"`
	IPOut      *string    `db:"IPStampOut"`
}

// Open reports whether the interval still lacks a TimeOut.
func (r *AttendanceRow) Open() bool {
	return r.TimeOut == nil
}

// Reference returns TimeIn when set, else the row's date stamp. All age
// comparisons against a row use this.
func (r *AttendanceRow) Reference() time.Time {
	if r.TimeIn != nil {
		return *r.TimeIn
	}
	return r.DateStamp
}

// AutoCleaned reports whether the recorded TimeOut was synthesized.
func (r *AttendanceRow) AutoCleaned() bool {
	return r.IPOut != nil && *r.IPOut == AutoCleanup
}

// Shift is one planned work window from the VListPeriodEmployee view.
// In and Out are offsets from the DatePeriod midnight.
type Shift struct {
	EmployeeID string
	DatePeriod time.Time
	In         time.Duration
	Out        time.Duration
	Holiday    bool
}

// Start returns the planned shift start instant.
func (s *Shift) Start() time.Time {
	return s.DatePeriod.Add(s.In)
}

// End returns the planned shift end instant, advanced by 24h when the
// planned out time is not after the in time (overnight wrap).
func (s *Shift) End() time.Time {
	end := s.DatePeriod.Add(s.Out)
	if !end.After(s.Start()) {
		end = end.Add(24 * time.Hour)
	}
	return end
}

// Window returns the inclusive admission window [start-4h, end+8h].
func (s *Shift) Window() (time.Time, time.Time) {
	return s.Start().Add(-AdmissionLead), s.End().Add(AdmissionLag)
}

// Admits reports whether t falls inside the admission window.
func (s *Shift) Admits(t time.Time) bool {
	from, to := s.Window()
	return !t.Before(from) && !t.After(to)
}

// Midpoint returns the instant halfway through the planned shift. A first
// punch after the midpoint is recorded as an out-only row.
func (s *Shift) Midpoint() time.Time {
	start := s.Start()
	return start.Add(s.End().Sub(start) / 2)
}

// ZeroStartHoliday reports the "holiday with 00:00 start" marker rows that
// shift selection must skip.
func (s *Shift) ZeroStartHoliday() bool {
	return s.Holiday && s.In == 0
}

// NormalizeEmployeeID trims and left-zero-pads an employee id to the
// canonical width. Blank ids are rejected; longer ids pass verbatim.
func NormalizeEmployeeID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", false
	}
	for len(id) < EmployeeIDWidth {
		id = "0" + id
	}
	return id, true
}

// DateOf truncates an instant to its date at midnight, preserving location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CombineDateTime attaches a time-of-day offset to a date.
func CombineDateTime(date time.Time, tod time.Duration) time.Time {
	return DateOf(date).Add(tod)
}
