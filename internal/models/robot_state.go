package models

import "time"

// Pin levels as reported over the admin API.
const (
	LevelLow  = "LOW"
	LevelHigh = "HIGH"
)

// RobotState is a read-only snapshot of the device.
type RobotState struct {
	Pin            string    `json:"pin"`
	Level          string    `json:"level"`  // HIGH | LOW
	Moving         bool      `json:"moving"` // true while the pin is HIGH
	Busy           bool      `json:"busy"`   // a dispatch cycle is in progress
	LastCommand    string    `json:"last_command,omitempty"`
	LastDurationMs int       `json:"last_duration_ms,omitempty"`
	LastVelocity   int       `json:"last_velocity,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
