package models

import "time"

// EmergencyStatus describes the emergency latch.
type EmergencyStatus struct {
	Active bool      `json:"active"`
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Age    string    `json:"age,omitempty"` // e.g. "3 minutes ago"
}

// SystemStatus is the snapshot served by the status endpoint and the websocket stream.
type SystemStatus struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Emergency   EmergencyStatus     `json:"emergency"`
	Tanks       []WaterLevelReading `json:"tanks"`
	Pumps       []PumpStats         `json:"pumps"`
}
