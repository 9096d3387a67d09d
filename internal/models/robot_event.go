package models

import "time"

// Event types written to the journal.
const (
	EventStartup = "STARTUP"
	EventExecute = "EXECUTE"
	EventReject  = "REJECT"
	EventPark    = "PARK"
)

// RobotEvent is a single journal entry.
type RobotEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STARTUP | EXECUTE | REJECT | PARK
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
