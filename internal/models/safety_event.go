package models

import "time"

// SafetyEventType tags a SafetyEvent.
type SafetyEventType string

const (
	EventPumpStarted         SafetyEventType = "PUMP_STARTED"
	EventPumpStopped         SafetyEventType = "PUMP_STOPPED"
	EventOverflowDetected    SafetyEventType = "OVERFLOW_DETECTED"
	EventEmergencyShutdown   SafetyEventType = "EMERGENCY_SHUTDOWN"
	EventSafetyCheckFailed   SafetyEventType = "SAFETY_CHECK_FAILED"
	EventMaintenanceRequired SafetyEventType = "MAINTENANCE_REQUIRED"
)

// SafetyEvent is a single audit log entry.
type SafetyEvent struct {
	EventID     string          `json:"event_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Type        SafetyEventType `json:"type"`
	PumpID      string          `json:"pump_id,omitempty"`
	TankID      string          `json:"tank_id,omitempty"`
	Description string          `json:"description"` // human-readable
	Metadata    any             `json:"metadata,omitempty"`
}
