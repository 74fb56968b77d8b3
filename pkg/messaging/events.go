package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Punch events
	EventPunchRecorded  = "attendance.punch.recorded"
	EventPunchDiscarded = "attendance.punch.discarded"

	// Ledger events
	EventRowClosed = "attendance.row.closed"
)

// Exchange names
const (
	ExchangeAttendanceEvents = "attendance.events"
)

// Event is the base event structure
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// PunchRecordedEvent is published when a punch mutated the ledger
type PunchRecordedEvent struct {
	EmployeeID string    `json:"employee_id"`
	DeviceIP   string    `json:"device_ip"`
	Instant    time.Time `json:"instant"`
	Outcome    string    `json:"outcome"`
}

// RowClosedEvent is published when the janitor synthesizes a close
type RowClosedEvent struct {
	RowID      int64     `json:"row_id"`
	EmployeeID string    `json:"employee_id"`
	TimeOut    time.Time `json:"time_out"`
	Synthetic  bool      `json:"synthetic"`
}
