// Package events publishes attendance domain events. Publishing is
// optional: a nil publisher is valid and drops everything, so neither
// daemon takes a hard dependency on the broker.
package events

import (
	"context"
	"time"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/messaging"
)

// PunchPublisher emits punch and row lifecycle events to the attendance
// exchange. Failures are logged, never surfaced: the ledger write already
// committed and the event stream is advisory.
type PunchPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPunchPublisher creates a publisher on the attendance events exchange.
func NewPunchPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*PunchPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeAttendanceEvents, source, log)
	if err != nil {
		return nil, err
	}
	return &PunchPublisher{publisher: pub, logger: log.WithComponent("events")}, nil
}

// PunchRecorded publishes a mutation event for a processed punch.
func (p *PunchPublisher) PunchRecorded(ctx context.Context, employeeID, deviceIP string, instant time.Time, outcome string) {
	if p == nil {
		return
	}
	p.emit(ctx, messaging.EventPunchRecorded, messaging.PunchRecordedEvent{
		EmployeeID: employeeID,
		DeviceIP:   deviceIP,
		Instant:    instant,
		Outcome:    outcome,
	})
}

// PunchDiscarded publishes a discard event for a duplicate punch.
func (p *PunchPublisher) PunchDiscarded(ctx context.Context, employeeID, deviceIP string, instant time.Time) {
	if p == nil {
		return
	}
	p.emit(ctx, messaging.EventPunchDiscarded, messaging.PunchRecordedEvent{
		EmployeeID: employeeID,
		DeviceIP:   deviceIP,
		Instant:    instant,
		Outcome:    "discarded",
	})
}

// RowClosed publishes a close event for a janitor-synthesized TimeOut.
func (p *PunchPublisher) RowClosed(ctx context.Context, rowID int64, employeeID string, timeOut time.Time, synthetic bool) {
	if p == nil {
		return
	}
	p.emit(ctx, messaging.EventRowClosed, messaging.RowClosedEvent{
		RowID:      rowID,
		EmployeeID: employeeID,
		TimeOut:    timeOut,
		Synthetic:  synthetic,
	})
}

func (p *PunchPublisher) emit(ctx context.Context, eventType string, data interface{}) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().
			Err(err).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}
