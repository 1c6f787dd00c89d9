package models

import "time"

// WaterLevelReading is one level estimate for a tank.
// IsValid is false whenever the value is not from a fresh successful sensor read.
type WaterLevelReading struct {
	TankID       string    `json:"tank_id"`
	LevelCm      float64   `json:"level_cm"`
	LevelPercent float64   `json:"level_percent"` // 0..100
	Timestamp    time.Time `json:"timestamp"`
	SensorType   string    `json:"sensor_type"`
	IsValid      bool      `json:"is_valid"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
