package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var pumpIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrInvalidPumpID rejects ids that cannot be used as file or topic names.
var ErrInvalidPumpID = errors.New("invalid pump id: use 1-64 letters, digits, '_' or '-'")

// ValidatePumpID checks that id is safe to embed in paths and MQTT topics.
func ValidatePumpID(id string) error {
	if !pumpIDPattern.MatchString(id) {
		return ErrInvalidPumpID
	}
	return nil
}

// PumpState is the lifecycle state of a single pump.
type PumpState string

const (
	PumpIdle          PumpState = "idle"
	PumpRunning       PumpState = "running"
	PumpOscillating   PumpState = "oscillating"
	PumpCooldown      PumpState = "cooldown"
	PumpEmergencyStop PumpState = "emergency_stop"
	PumpMaintenance   PumpState = "maintenance"
	PumpFault         PumpState = "fault"
)

// IsActive reports whether the pump is currently moving water.
func (s PumpState) IsActive() bool {
	return s == PumpRunning || s == PumpOscillating
}

// PumpType classifies a pump by the job it does in the installation.
type PumpType string

const (
	PumpFill        PumpType = "fill"
	PumpDrain       PumpType = "drain"
	PumpCirculation PumpType = "circulation"
	PumpAuxiliary   PumpType = "auxiliary"
)

// MaxRuntime is the longest continuous run allowed for the pump type.
func (t PumpType) MaxRuntime() time.Duration {
	switch t {
	case PumpFill:
		return 300 * time.Second
	case PumpDrain:
		return 600 * time.Second
	case PumpCirculation:
		return 3600 * time.Second
	case PumpAuxiliary:
		return 1800 * time.Second
	default:
		return 0
	}
}

// ParsePumpType accepts the lower-case type name, ignoring surrounding space and case.
func ParsePumpType(s string) (PumpType, error) {
	switch t := PumpType(strings.ToLower(strings.TrimSpace(s))); t {
	case PumpFill, PumpDrain, PumpCirculation, PumpAuxiliary:
		return t, nil
	default:
		return "", fmt.Errorf("unknown pump type %q: must be fill, drain, circulation or auxiliary", s)
	}
}

// PumpStats is a read-only snapshot of everything tracked for one pump.
type PumpStats struct {
	PumpID           string    `json:"pump_id"`
	PumpType         PumpType  `json:"pump_type,omitempty"`
	State            PumpState `json:"state"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	LastOperationAt  time.Time `json:"last_operation_at,omitempty"`
	TotalRuntimeSec  uint64    `json:"total_runtime_s"`
	MaintenanceHours uint64    `json:"maintenance_hours"`
	OscillationCount uint32    `json:"oscillation_count"`
	FaultReason      string    `json:"fault_reason,omitempty"`
}

// PumpCalibration holds the parameters derived when a pump is calibrated.
type PumpCalibration struct {
	PumpID           string    `json:"pump_id"`
	PumpType         PumpType  `json:"pump_type"`
	TankID           string    `json:"tank_id"`
	LevelCm          float64   `json:"level_cm"`
	LevelPercent     float64   `json:"level_percent"`
	ReadingValid     bool      `json:"reading_valid"`
	FlowRateLPM      float64   `json:"flow_rate_lpm"`
	ResponseDelayMs  int       `json:"response_delay_ms"`
	MaxRuntimeSec    int       `json:"max_runtime_s"`
	SensorCalibrated bool      `json:"sensor_calibrated"`
	CalibratedAt     time.Time `json:"calibrated_at"`
}

// EmergencyMarker is the content of the on-disk emergency stop marker.
type EmergencyMarker struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}
