// Package engine classifies incoming punches against the attendance
// ledger and executes the corresponding mutation: open a new interval,
// close or amend an existing one, or discard a duplicate. A punch may
// additionally trigger cleanup of a stale open interval left over from an
// earlier shift.
package engine

import (
	"context"
	"time"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/shift"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
)

// Store is the transactional ledger surface the engine mutates. Every
// method commits before returning; failures roll back and surface as
// typed store errors.
type Store interface {
	shift.PlanReader

	LatestRowFor(ctx context.Context, employeeID string) (*domain.AttendanceRow, error)
	LatestRowOn(ctx context.Context, employeeID string, dateStamp time.Time) (*domain.AttendanceRow, error)
	InsertOpen(ctx context.Context, dateStamp time.Time, employeeID, ipIn string, timeIn time.Time) error
	InsertOutOnly(ctx context.Context, dateStamp time.Time, employeeID, ipOut string, timeOut time.Time) error
	UpdateClose(ctx context.Context, id int64, timeOut time.Time, ipOut string) error
}

// Outcome is the classification the engine assigned to a punch.
type Outcome int

const (
	// OutcomeDiscarded: duplicate punch, no mutation.
	OutcomeDiscarded Outcome = iota
	// OutcomeOpened: new open interval inserted.
	OutcomeOpened
	// OutcomeClosed: existing open interval closed by this punch.
	OutcomeClosed
	// OutcomeAmended: recorded TimeOut overwritten by this punch.
	OutcomeAmended
	// OutcomeOutOnly: out-only row inserted (first scan past shift midpoint).
	OutcomeOutOnly
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOpened:
		return "opened"
	case OutcomeClosed:
		return "closed"
	case OutcomeAmended:
		return "amended"
	case OutcomeOutOnly:
		return "out_only"
	default:
		return "discarded"
	}
}

// Result reports what a punch did to the ledger.
type Result struct {
	Outcome Outcome
	// CleanedUp is set when a stale open interval was auto-closed before
	// the punch itself was classified.
	CleanedUp bool
}

// Mutated reports whether the punch changed store state.
func (r Result) Mutated() bool {
	return r.CleanedUp || r.Outcome != OutcomeDiscarded
}

// Engine is the shift-aware punch reconciliation state machine.
type Engine struct {
	store    Store
	resolver *shift.Resolver
	logger   *logger.Logger
	locks    keyedMutex
}

// New creates a new reconciliation engine
func New(store Store, resolver *shift.Resolver, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		logger:   log.WithComponent("engine"),
	}
}

// Process classifies one punch and applies its mutation. Punches for the
// same employee are serialized in-process: the classification reads then
// writes based on the read, which SQL-side isolation alone cannot protect
// across concurrent device streams.
func (e *Engine) Process(ctx context.Context, p domain.Punch) (Result, error) {
	unlock := e.locks.lock(p.EmployeeID)
	defer unlock()

	var res Result

	covering, err := e.resolver.Resolve(ctx, p.EmployeeID, p.Instant)
	if err != nil {
		return res, err
	}

	cleanedID, cleaned, err := e.cleanupStale(ctx, p, covering)
	if err != nil {
		return res, err
	}
	res.CleanedUp = cleaned

	row, err := e.candidateRow(ctx, p, covering)
	if err != nil {
		return res, err
	}

	if row != nil && row.Open() {
		basis := row.Reference()
		age := p.Instant.Sub(basis)
		switch {
		case age >= 0 && age < domain.DuplicateWindow:
			res.Outcome = OutcomeDiscarded
			return res, nil
		case age > 0 && age < domain.MaxOpenAge:
			if err := e.store.UpdateClose(ctx, row.ID, p.Instant, p.DeviceIP); err != nil {
				return res, err
			}
			res.Outcome = OutcomeClosed
			return res, nil
		}
		// Punch precedes the open TimeIn or the row is too old to close
		// live; fall through and open a fresh interval.
	} else if row != nil && row.ID != cleanedID {
		if e.shouldAmend(row, p.Instant) {
			if err := e.store.UpdateClose(ctx, row.ID, p.Instant, p.DeviceIP); err != nil {
				return res, err
			}
			res.Outcome = OutcomeAmended
			return res, nil
		}
	}

	outcome, err := e.openInterval(ctx, p, covering)
	if err != nil {
		return res, err
	}
	res.Outcome = outcome
	return res, nil
}

// cleanupStale auto-closes the employee's latest row when it is still open
// but belongs to a different shift than the incoming punch. Returns the
// closed row id so classification never amends the row it just closed.
func (e *Engine) cleanupStale(ctx context.Context, p domain.Punch, covering *domain.Shift) (int64, bool, error) {
	prev, err := e.store.LatestRowFor(ctx, p.EmployeeID)
	if err != nil {
		return 0, false, err
	}
	if prev == nil || !prev.Open() {
		return 0, false, nil
	}

	var stale bool
	if covering != nil {
		stale = !covering.Admits(prev.Reference())
	} else {
		stale = p.Instant.Sub(prev.Reference()) > domain.StaleShiftAge
	}
	if !stale {
		return 0, false, nil
	}

	synthetic := shift.SyntheticTimeOut(ctx, e.store, prev)
	if err := e.store.UpdateClose(ctx, prev.ID, synthetic, domain.AutoCleanup); err != nil {
		return 0, false, err
	}

	e.logger.Info().
		Int64("row_id", prev.ID).
		Str("employee_id", prev.EmployeeID).
		Time("time_out", synthetic).
		Msg("auto-closed stale open interval")

	return prev.ID, true, nil
}

// candidateRow selects the row a punch is classified against: the latest
// row on the covering shift's day, or the employee's latest row overall
// when no shift was resolved.
func (e *Engine) candidateRow(ctx context.Context, p domain.Punch, covering *domain.Shift) (*domain.AttendanceRow, error) {
	if covering != nil {
		return e.store.LatestRowOn(ctx, p.EmployeeID, covering.DatePeriod)
	}
	return e.store.LatestRowFor(ctx, p.EmployeeID)
}

// shouldAmend decides whether a punch overwrites a closed row's TimeOut:
// synthetic closes always yield to a real punch, an earlier (or equal)
// punch overrides the recorded value, and a later punch amends only
// within the amend window.
func (e *Engine) shouldAmend(row *domain.AttendanceRow, t time.Time) bool {
	if row.TimeOut == nil {
		return false
	}
	if row.AutoCleaned() || !row.TimeOut.Before(t) {
		return true
	}
	gap := t.Sub(*row.TimeOut)
	return gap > 0 && gap < domain.AmendWindow
}

// openInterval starts a fresh interval for the punch. Past the shift
// midpoint the punch is recorded as an out-only row: there is no TimeIn to
// pair it with, but losing the out-scan would make manual reconciliation
// impossible.
func (e *Engine) openInterval(ctx context.Context, p domain.Punch, covering *domain.Shift) (Outcome, error) {
	if covering != nil && p.Instant.After(covering.Midpoint()) {
		if err := e.store.InsertOutOnly(ctx, covering.DatePeriod, p.EmployeeID, p.DeviceIP, p.Instant); err != nil {
			return OutcomeDiscarded, err
		}
		return OutcomeOutOnly, nil
	}

	dateStamp := domain.DateOf(p.Instant)
	if covering != nil {
		dateStamp = covering.DatePeriod
	}
	if err := e.store.InsertOpen(ctx, dateStamp, p.EmployeeID, p.DeviceIP, p.Instant); err != nil {
		return OutcomeDiscarded, err
	}
	return OutcomeOpened, nil
}
