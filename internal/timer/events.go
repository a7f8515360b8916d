package timer

import (
	"time"

	"zenfocus/backend/internal/model"
)

// EventType defines the kind of engine event.
type EventType string

const (
	EventStateChange   EventType = "state_change"
	EventTick          EventType = "tick"
	EventCompleted     EventType = "completed"
	EventPersistFailed EventType = "persist_failed"
)

// Event is delivered to subscribers after every engine mutation.
type Event struct {
	Type    EventType            `json:"type"`
	Timer   Snapshot             `json:"timer"`
	Record  *model.SessionRecord `json:"record,omitempty"`
	Message string               `json:"message,omitempty"`
	At      time.Time            `json:"at"`
}

// Snapshot is a read-only view of the active interval.
type Snapshot struct {
	Mode             model.TimerMode   `json:"mode"`
	Status           model.TimerStatus `json:"status"`
	RemainingSeconds int               `json:"remainingSeconds"`
	DurationSeconds  int               `json:"durationSeconds"`
	Progress         float64           `json:"progress"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	Note             string            `json:"note,omitempty"`
}
