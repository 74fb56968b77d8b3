// Package janitor closes abandoned open intervals on a fixed schedule.
// Each sweep runs on a fresh store session so a long-dead connection
// never wedges the schedule.
package janitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/events"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/shift"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
)

// Store is the ledger surface a sweep needs.
type Store interface {
	shift.PlanReader

	FindOpenRowsOlderThan(ctx context.Context, threshold time.Time) ([]*domain.AttendanceRow, error)
	UpdateClose(ctx context.Context, id int64, timeOut time.Time, ipOut string) error
}

// StoreFactory opens a store session for one sweep. The returned close
// func always runs when the sweep ends.
type StoreFactory func(ctx context.Context) (Store, func(), error)

// Clock supplies the sweep's notion of now; swapped in tests.
type Clock interface {
	Now() time.Time
}

// Status is a point-in-time snapshot of the sweep loop, exposed on the
// ops surface.
type Status struct {
	Schedule   string    `json:"schedule"`
	Sweeps     uint64    `json:"sweeps"`
	LastSweep  time.Time `json:"last_sweep,omitempty"`
	LastClosed int       `json:"last_closed"`
	LastError  string    `json:"last_error,omitempty"`
}

// Janitor runs scheduled cleanup sweeps over the attendance ledger.
type Janitor struct {
	factory   StoreFactory
	clock     Clock
	threshold time.Duration
	interval  time.Duration
	publisher *events.PunchPublisher
	logger    *logger.Logger

	mu     sync.Mutex
	status Status
}

// New creates a janitor. thresholdHours bounds how old an open row must be
// before it is closed; interval is the sweep cadence.
func New(factory StoreFactory, clk Clock, thresholdHours int, interval time.Duration, publisher *events.PunchPublisher, log *logger.Logger) *Janitor {
	return &Janitor{
		factory:   factory,
		clock:     clk,
		threshold: time.Duration(thresholdHours) * time.Hour,
		interval:  interval,
		publisher: publisher,
		logger:    log.WithComponent("janitor"),
		status:    Status{Schedule: scheduleSpec(interval)},
	}
}

// Status returns a snapshot of the sweep loop.
func (j *Janitor) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Run sweeps once immediately, then on the schedule, until ctx ends.
func (j *Janitor) Run(ctx context.Context) error {
	j.sweepAndLog(ctx)

	spec := scheduleSpec(j.interval)
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { j.sweepAndLog(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	j.logger.Info().Str("schedule", spec).Msg("janitor started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Sweep closes every open row older than the threshold. Per-row failures
// are logged and skipped; the sweep finishes the batch. Returns the number
// of rows closed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	store, closeStore, err := j.factory(ctx)
	if err != nil {
		return 0, err
	}
	defer closeStore()

	threshold := j.clock.Now().Add(-j.threshold)
	rows, err := store.FindOpenRowsOlderThan(ctx, threshold)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, row := range rows {
		synthetic := shift.SyntheticTimeOut(ctx, store, row)
		if err := store.UpdateClose(ctx, row.ID, synthetic, domain.AutoCleanup); err != nil {
			j.logger.Warn().
				Err(err).
				Int64("row_id", row.ID).
				Str("employee_id", row.EmployeeID).
				Msg("failed to close abandoned row")
			continue
		}

		closed++
		j.logger.Info().
			Int64("row_id", row.ID).
			Str("employee_id", row.EmployeeID).
			Time("time_out", synthetic).
			Msg("closed abandoned row")

		j.publisher.RowClosed(ctx, row.ID, row.EmployeeID, synthetic, true)
	}

	return closed, nil
}

func (j *Janitor) sweepAndLog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	closed, err := j.Sweep(ctx)

	j.mu.Lock()
	j.status.Sweeps++
	j.status.LastSweep = j.clock.Now()
	j.status.LastClosed = closed
	j.status.LastError = ""
	if err != nil {
		j.status.LastError = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		j.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	j.logger.Info().Int("closed", closed).Msg("sweep complete")
}

// scheduleSpec renders the sweep cadence as a cron spec. Whole-hour
// intervals that divide the day align to midnight so sweeps land on the
// same wall-clock hours every day; anything else runs on a plain
// interval.
func scheduleSpec(interval time.Duration) string {
	hours := int(interval / time.Hour)
	if hours > 0 && interval%time.Hour == 0 && 24%hours == 0 {
		marks := make([]string, 0, 24/hours)
		for h := 0; h < 24; h += hours {
			marks = append(marks, fmt.Sprintf("%d", h))
		}
		return fmt.Sprintf("0 %s * * *", strings.Join(marks, ","))
	}
	return fmt.Sprintf("@every %s", interval)
}
