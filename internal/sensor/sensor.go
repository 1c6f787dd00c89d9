// Package sensor reads raw distances from tank level sensors.
//
// A LevelSensor measures the distance from the sensor head down to the water
// surface. Turning that into a level is the water-level monitor's job.
package sensor

import (
	"errors"
	"strings"
)

// Kind tags the closed set of sensor implementations.
type Kind string

const (
	KindUltrasonic Kind = "ultrasonic"
	KindMock       Kind = "mock"
)

// ParseKind resolves a configured sensor type. ok is false for unknown values.
func ParseKind(s string) (k Kind, ok bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUltrasonic:
		return KindUltrasonic, true
	case KindMock:
		return KindMock, true
	default:
		return KindMock, false
	}
}

// LevelSensor is one physical (or simulated) distance sensor.
type LevelSensor interface {
	// Read returns the measured distance in centimetres.
	Read() (float64, error)
	// Calibrate adjusts the sensor so its next reading maps to actualLevelCm.
	Calibrate(actualLevelCm float64) error
	Kind() Kind
}

var (
	// ErrTimeout is returned when the echo edge does not arrive in time.
	ErrTimeout = errors.New("sensor timeout")
	// ErrNoSamples is returned when every sample of a read failed.
	ErrNoSamples = errors.New("no valid sensor samples")
	// ErrInvalidLevel rejects calibration levels outside the tank.
	ErrInvalidLevel = errors.New("calibration level outside tank range")
)
