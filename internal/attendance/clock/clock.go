// Package clock abstracts wall-clock access and the per-deployment
// timezone offset applied to raw terminal timestamps.
package clock

import "time"

// Clock provides now() and offset application. The engine and janitor
// consume this interface so tests can pin time.
type Clock interface {
	Now() time.Time
	// ApplyOffset shifts a raw device timestamp by the configured hours.
	ApplyOffset(t time.Time) time.Time
}

// System is the production clock.
type System struct {
	OffsetHours int
}

// NewSystem creates a system clock with the configured offset.
func NewSystem(offsetHours int) *System {
	return &System{OffsetHours: offsetHours}
}

// Now returns the current wall-clock time.
func (s *System) Now() time.Time {
	return time.Now()
}

// ApplyOffset adds the configured offset hours to a raw device timestamp.
func (s *System) ApplyOffset(t time.Time) time.Time {
	if s.OffsetHours == 0 {
		return t
	}
	return t.Add(time.Duration(s.OffsetHours) * time.Hour)
}

// Fixed is a test clock that always reports the same instant.
type Fixed struct {
	Instant     time.Time
	OffsetHours int
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.Instant
}

// ApplyOffset adds the configured offset hours.
func (f *Fixed) ApplyOffset(t time.Time) time.Time {
	return t.Add(time.Duration(f.OffsetHours) * time.Hour)
}
